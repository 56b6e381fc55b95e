package indicator

import "github.com/haldorsen/fstratbt/pkg/model"

func rsiValues(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period && i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

type rsiIndicator struct {
	kind    Kind
	inverse bool
}

func (r rsiIndicator) Kind() Kind { return r.kind }

func (r rsiIndicator) ParamSchema() []ParamDef {
	return []ParamDef{
		barTypeDomain,
		{Name: "timeperiod", Domain: DomainIntRange, Min: 2, Max: 100},
		{Name: "oversold", Domain: DomainFloatRange, Min: 0, Max: 50},
		{Name: "overbought", Domain: DomainFloatRange, Min: 50, Max: 100},
	}
}

func (r rsiIndicator) MaxLookback(params map[string]float64) int {
	return int(params["timeperiod"]) + 1
}

func (r rsiIndicator) Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	period := int(params["timeperiod"])
	oversold := params["oversold"]
	overbought := params["overbought"]
	values := barField(bars, length, params["bar_type"])
	rsi := rsiValues(values, period)

	long = make([]bool, len(bars))
	short = make([]bool, len(bars))
	from := r.MaxLookback(params)
	for i := from; i < length; i++ {
		belowOversold := rsi[i] < oversold
		aboveOverbought := rsi[i] > overbought
		if r.inverse {
			belowOversold, aboveOverbought = aboveOverbought, belowOversold
		}
		long[i] = belowOversold
		short[i] = aboveOverbought
	}
	return long, short, nil
}
