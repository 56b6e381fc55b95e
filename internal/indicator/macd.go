package indicator

import "github.com/haldorsen/fstratbt/pkg/model"

type macdIndicator struct {
	kind    Kind
	inverse bool
}

func (m macdIndicator) Kind() Kind { return m.kind }

func (m macdIndicator) ParamSchema() []ParamDef {
	return []ParamDef{
		barTypeDomain,
		{Name: "fastperiod", Domain: DomainIntRange, Min: 2, Max: 100},
		{Name: "slowperiod", Domain: DomainIntRange, Min: 3, Max: 200},
		{Name: "signalperiod", Domain: DomainIntRange, Min: 2, Max: 100},
	}
}

func (m macdIndicator) MaxLookback(params map[string]float64) int {
	slow := int(params["slowperiod"])
	signal := int(params["signalperiod"])
	return slow + signal
}

// Compute follows the teacher's MACD line/signal/histogram decomposition
// (fast EMA minus slow EMA, signal is the EMA of the MACD line), evaluated
// over the whole period instead of incrementally bar by bar.
func (m macdIndicator) Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	fast := int(params["fastperiod"])
	slow := int(params["slowperiod"])
	signal := int(params["signalperiod"])
	values := barField(bars, length, params["bar_type"])

	fastEMA := ema(values, fast)
	slowEMA := ema(values, slow)
	macdLine := make([]float64, length)
	for i := 0; i < length; i++ {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(macdLine, signal)

	long = make([]bool, len(bars))
	short = make([]bool, len(bars))
	from := m.MaxLookback(params)
	for i := from; i < length; i++ {
		above := macdLine[i] > signalLine[i]
		below := macdLine[i] < signalLine[i]
		if m.inverse {
			above, below = below, above
		}
		long[i] = above
		short[i] = below
	}
	return long, short, nil
}
