package indicator

import "github.com/haldorsen/fstratbt/pkg/model"

// trueRangeAndDM follows the teacher's ADXData accumulation (true range,
// directional movement plus/minus), computed here as whole-period vectors.
func trueRangeAndDM(bars []model.Bar, length int) (tr, dmPlus, dmMinus []float64) {
	tr = make([]float64, length)
	dmPlus = make([]float64, length)
	dmMinus = make([]float64, length)
	for i := 1; i < length; i++ {
		high, low, prevClose := bars[i].High, bars[i].Low, bars[i-1].Close
		hl := high - low
		hc := abs(high - prevClose)
		lc := abs(low - prevClose)
		tr[i] = max3(hl, hc, lc)

		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low
		if upMove > downMove && upMove > 0 {
			dmPlus[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			dmMinus[i] = downMove
		}
	}
	return tr, dmPlus, dmMinus
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func adxValues(bars []model.Bar, length int, period int) (adx, diPlus, diMinus []float64) {
	tr, dmPlus, dmMinus := trueRangeAndDM(bars, length)
	atr := sma(tr, period)
	smDMPlus := sma(dmPlus, period)
	smDMMinus := sma(dmMinus, period)

	diPlus = make([]float64, length)
	diMinus = make([]float64, length)
	dx := make([]float64, length)
	for i := 0; i < length; i++ {
		if atr[i] == 0 {
			continue
		}
		diPlus[i] = smDMPlus[i] / atr[i] * 100
		diMinus[i] = smDMMinus[i] / atr[i] * 100
		sum := diPlus[i] + diMinus[i]
		if sum != 0 {
			dx[i] = abs(diPlus[i]-diMinus[i]) / sum * 100
		}
	}
	adx = sma(dx, period)
	return adx, diPlus, diMinus
}

type adxIndicator struct {
	kind    Kind
	inverse bool
}

func (a adxIndicator) Kind() Kind { return a.kind }

func (a adxIndicator) ParamSchema() []ParamDef {
	return []ParamDef{
		{Name: "timeperiod", Domain: DomainIntRange, Min: 2, Max: 100},
		{Name: "threshold", Domain: DomainFloatRange, Min: 0, Max: 100},
	}
}

func (a adxIndicator) MaxLookback(params map[string]float64) int {
	return int(params["timeperiod"]) * 2
}

// Compute signals a trending, directional market: long where ADX clears
// the threshold and +DI leads -DI, short the mirror image.
func (a adxIndicator) Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	period := int(params["timeperiod"])
	threshold := params["threshold"]
	adx, diPlus, diMinus := adxValues(bars, length, period)

	long = make([]bool, len(bars))
	short = make([]bool, len(bars))
	from := a.MaxLookback(params)
	for i := from; i < length; i++ {
		trending := adx[i] >= threshold
		bullish := trending && diPlus[i] > diMinus[i]
		bearish := trending && diMinus[i] > diPlus[i]
		if a.inverse {
			bullish, bearish = bearish, bullish
		}
		long[i] = bullish
		short[i] = bearish
	}
	return long, short, nil
}
