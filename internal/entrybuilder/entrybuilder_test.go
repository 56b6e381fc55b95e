package entrybuilder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/calendar"
	"github.com/haldorsen/fstratbt/internal/entrybuilder"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// buildWeeklyMatrix constructs a single-period monotone-uptrend matrix
// covering one full trading week, matching spec.md §8 scenario E1's setup.
func buildWeeklyMatrix(n int, step float64) *model.BarMatrix {
	capacity := model.MinutesPerWeek
	bars := make([]model.Bar, capacity)
	start := time.Date(2024, 1, 7, 17, 0, 0, 0, time.UTC) // Sunday 17:00
	prevClose := 100.0
	for i := 0; i < n; i++ {
		close := 100 + step*float64(i)
		bars[i] = model.Bar{
			DateTime: start.Add(time.Duration(i) * time.Minute),
			Open:     prevClose,
			High:     close + 0.01,
			Low:      close - 0.01,
			Close:    close,
			Volume:   1,
		}
		prevClose = close
	}
	for i := n; i < capacity; i++ {
		bars[i] = model.PaddingBar("CL")
	}

	period := model.Period{Start: start, Bars: bars, Length: n}
	matrix := &model.BarMatrix{
		Market:        "CL",
		Reset:         model.ResetWeekly,
		Periods:       []model.Period{period},
		Capacity:      capacity,
		PeriodOffsets: []int{0},
		PeriodLengths: []int{n},
	}
	dts := make([]time.Time, n)
	for i := 0; i < n; i++ {
		dts[i] = bars[i].DateTime
	}
	matrix.AllDateTimes = dts
	return matrix
}

func buildMasks(t *testing.T, matrix *model.BarMatrix) *calendar.Masks {
	t.Helper()
	return calendar.NewBuilder().Build(matrix, nil, nil, nil)
}

func TestWarmupMinutesAreFlat(t *testing.T) {
	require := require.New(t)
	matrix := buildWeeklyMatrix(200, 0.01)
	masks := buildMasks(t, matrix)

	strat := model.Strategy{
		Stoploss: 0.01, ProfitTarget: 0.02, Session: model.SessionAll,
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		TakeEverySignal: true, IndicatorReset: model.ResetWeekly,
		Indicators: []model.IndicatorSpec{
			{Name: "SMA_With", Params: map[string]float64{"bar_type": 1, "timeperiod": 30}},
		},
	}
	require.NoError(strat.Validate())

	decisions, err := entrybuilder.NewBuilder().BuildPeriod(strat, matrix, masks, 0, nil)
	require.NoError(err)

	for m := 0; m < 29; m++ {
		require.Equal(model.DecisionFlat, decisions[m], "minute %d should be flat during SMA warmup", m)
	}
}

func TestDisagreeingIndicatorsYieldAllFlat(t *testing.T) {
	require := require.New(t)
	matrix := buildWeeklyMatrix(200, 0.01)
	masks := buildMasks(t, matrix)

	// SMA_With and SMA_Against on the same params disagree on every minute
	// by construction (one inverts the other) — spec.md §8 E3.
	strat := model.Strategy{
		Stoploss: 0.01, ProfitTarget: 0.02, Session: model.SessionAll,
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		TakeEverySignal: true, IndicatorReset: model.ResetWeekly,
		Indicators: []model.IndicatorSpec{
			{Name: "SMA_With", Params: map[string]float64{"bar_type": 1, "timeperiod": 30}},
			{Name: "SMA_Against", Params: map[string]float64{"bar_type": 1, "timeperiod": 30}},
		},
	}
	require.NoError(strat.Validate())

	decisions, err := entrybuilder.NewBuilder().BuildPeriod(strat, matrix, masks, 0, nil)
	require.NoError(err)

	for m, d := range decisions {
		require.Equal(model.DecisionFlat, d, "minute %d: disagreeing indicators must yield flat", m)
	}
}

func TestCooldownSuppressesRepeatEntryUntilIndicatorsClear(t *testing.T) {
	require := require.New(t)
	matrix := buildWeeklyMatrix(200, 0.01)
	masks := buildMasks(t, matrix)

	strat := model.Strategy{
		Stoploss: 0.01, ProfitTarget: 0.02, Session: model.SessionAll,
		Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		TakeEverySignal: true, IndicatorReset: model.ResetWeekly,
		Indicators: []model.IndicatorSpec{
			{Name: "SMA_With", Params: map[string]float64{"bar_type": 1, "timeperiod": 30}},
		},
	}
	require.NoError(strat.Validate())

	decisions, err := entrybuilder.NewBuilder().BuildPeriod(strat, matrix, masks, 0, nil)
	require.NoError(err)

	// Monotone uptrend: once the SMA_With condition fires long, it remains
	// true for every subsequent minute, so only the first crossing should
	// ever be directional.
	firstLong := -1
	for m, d := range decisions {
		if d == model.DecisionLong {
			firstLong = m
			break
		}
	}
	require.GreaterOrEqual(firstLong, 29)
	for m := firstLong + 1; m < len(decisions); m++ {
		require.NotEqual(model.DecisionLong, decisions[m], "minute %d should be suppressed by cooldown", m)
	}
}
