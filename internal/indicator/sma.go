package indicator

import "github.com/haldorsen/fstratbt/pkg/model"

// barField selects which OHLC field an indicator reads, mirroring the
// source's bar_type parameter.
func barField(bars []model.Bar, length int, barType float64) []float64 {
	out := make([]float64, length)
	for i := 0; i < length; i++ {
		switch int(barType) {
		case 2:
			out[i] = bars[i].Open
		case 3:
			out[i] = bars[i].High
		case 4:
			out[i] = bars[i].Low
		default:
			out[i] = bars[i].Close
		}
	}
	return out
}

func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / (float64(period) + 1.0)
	seed := sma(values, period)
	for i := range values {
		switch {
		case i < period-1:
			// undefined, left zero
		case i == period-1:
			out[i] = seed[i]
		default:
			out[i] = values[i]*k + out[i-1]*(1-k)
		}
	}
	return out
}

var barTypeDomain = ParamDef{Name: "bar_type", Domain: DomainEnum, Allowed: []float64{1, 2, 3, 4}}

type smaIndicator struct {
	kind    Kind
	inverse bool
}

func (s smaIndicator) Kind() Kind { return s.kind }

func (s smaIndicator) ParamSchema() []ParamDef {
	return []ParamDef{
		barTypeDomain,
		{Name: "timeperiod", Domain: DomainIntRange, Min: 2, Max: 500},
	}
}

func (s smaIndicator) MaxLookback(params map[string]float64) int {
	return int(params["timeperiod"]) - 1
}

func (s smaIndicator) Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	period := int(params["timeperiod"])
	values := barField(bars, length, params["bar_type"])
	avg := sma(values, period)

	long = make([]bool, len(bars))
	short = make([]bool, len(bars))
	for i := period - 1; i < length; i++ {
		above := values[i] > avg[i]
		below := values[i] < avg[i]
		if s.inverse {
			above, below = below, above
		}
		long[i] = above
		short[i] = below
	}
	return long, short, nil
}

type emaIndicator struct {
	kind    Kind
	inverse bool
}

func (e emaIndicator) Kind() Kind { return e.kind }

func (e emaIndicator) ParamSchema() []ParamDef {
	return []ParamDef{
		barTypeDomain,
		{Name: "timeperiod", Domain: DomainIntRange, Min: 2, Max: 500},
	}
}

func (e emaIndicator) MaxLookback(params map[string]float64) int {
	return int(params["timeperiod"]) - 1
}

func (e emaIndicator) Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	period := int(params["timeperiod"])
	values := barField(bars, length, params["bar_type"])
	avg := ema(values, period)

	long = make([]bool, len(bars))
	short = make([]bool, len(bars))
	for i := period - 1; i < length; i++ {
		above := values[i] > avg[i]
		below := values[i] < avg[i]
		if e.inverse {
			above, below = below, above
		}
		long[i] = above
		short[i] = below
	}
	return long, short, nil
}
