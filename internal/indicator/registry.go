package indicator

// Registry maps every closed Kind to its implementation, the "static table"
// spec.md §9's "Indicator registry → trait/interface" design note calls
// for. Each "With"/"Against" pair shares its math and differs only in
// which side (long/short) the underlying condition is assigned to.
var Registry = map[Kind]Indicator{
	KindSMAWith:    smaIndicator{kind: KindSMAWith, inverse: false},
	KindSMAAgainst: smaIndicator{kind: KindSMAAgainst, inverse: true},

	KindEMAWith:    emaIndicator{kind: KindEMAWith, inverse: false},
	KindEMAAgainst: emaIndicator{kind: KindEMAAgainst, inverse: true},

	KindRSIWith:    rsiIndicator{kind: KindRSIWith, inverse: false},
	KindRSIAgainst: rsiIndicator{kind: KindRSIAgainst, inverse: true},

	KindMACDWith:    macdIndicator{kind: KindMACDWith, inverse: false},
	KindMACDAgainst: macdIndicator{kind: KindMACDAgainst, inverse: true},

	KindADXWith:    adxIndicator{kind: KindADXWith, inverse: false},
	KindADXAgainst: adxIndicator{kind: KindADXAgainst, inverse: true},
}

// Names returns every registered indicator kind, primarily for config
// validation and test fixtures.
func Names() []Kind {
	names := make([]Kind, 0, len(Registry))
	for k := range Registry {
		names = append(names, k)
	}
	return names
}
