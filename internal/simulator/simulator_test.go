package simulator_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/simulator"
	"github.com/haldorsen/fstratbt/pkg/model"
)

func monotoneUpPeriod(n, capacity int) model.Period {
	return monotoneUpPeriodStep(n, capacity, 0.01)
}

func monotoneUpPeriodStep(n, capacity int, step float64) model.Period {
	bars := make([]model.Bar, capacity)
	prevClose := 100.0
	for i := 0; i < n; i++ {
		close := 100 + step*float64(i)
		bars[i] = model.Bar{Open: prevClose, High: close + 0.01, Low: close - 0.01, Close: close, Volume: 1}
		prevClose = close
	}
	for i := n; i < capacity; i++ {
		bars[i] = model.PaddingBar("CL")
	}
	return model.Period{Bars: bars, Length: n}
}

func flatTimedExits(capacity int) []bool {
	return make([]bool, capacity)
}

// TestLongTradeExitsAtProfitTarget mirrors spec.md §8 E1: a monotone uptrend
// with stoploss=0.01, profit_target=0.02 should exit the long trade at the
// profit target rather than riding to max length.
func TestLongTradeExitsAtProfitTarget(t *testing.T) {
	require := require.New(t)
	capacity := 200
	period := monotoneUpPeriodStep(150, capacity, 0.5)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[30] = model.DecisionLong

	strat := model.Strategy{Stoploss: 0.01, ProfitTarget: 0.02, HasMaxLength: true, MaxTradeLength: 60, TakeEverySignal: true}
	returns := make([]float64, capacity)

	sim := simulator.New(0.0005)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)

	require.Len(trades, 1)
	trade := trades[0]
	require.Equal(model.ExitProfitTarget, trade.ExitReason)
	require.Equal(1, trade.Direction)
	require.Equal(31, trade.EntryMinute)
	require.Greater(trade.ExitPrice, trade.EntryPrice)
}

// TestStoplossBeatsProfitTargetOnSameMinute is spec.md §8 testable property
// 6: when both barriers would trigger on the same minute, Stoploss wins.
func TestStoplossBeatsProfitTargetOnSameMinute(t *testing.T) {
	require := require.New(t)
	capacity := 20
	bars := make([]model.Bar, capacity)
	for i := range bars {
		bars[i] = model.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
	}
	// Entry at minute 0 (fill at bar 1's open=100). Minute 2 spans both the
	// stop-loss and profit-target barriers in the same bar.
	bars[2].High = 110
	bars[2].Low = 90
	period := model.Period{Bars: bars, Length: capacity}
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[0] = model.DecisionLong

	strat := model.Strategy{Stoploss: 0.05, ProfitTarget: 0.05, HasMaxLength: true, MaxTradeLength: 10}
	returns := make([]float64, capacity)

	sim := simulator.New(0)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)

	require.Len(trades, 1)
	require.Equal(model.ExitStoploss, trades[0].ExitReason)
	require.Equal(2, trades[0].ExitMinute)
}

// TestTimedExitAtMaxTradeLengthBoundary is spec.md §8 E5: a timed exit at
// m+7 with max_trade_length=10 should exit with reason TimedExit at m+7.
func TestTimedExitAtMaxTradeLengthBoundary(t *testing.T) {
	require := require.New(t)
	capacity := 30
	period := monotoneUpPeriod(30, capacity)
	// Flatten the trend so neither barrier triggers before the timed exit.
	for i := range period.Bars {
		period.Bars[i].High = period.Bars[i].Close + 0.001
		period.Bars[i].Low = period.Bars[i].Close - 0.001
	}
	timedExits := flatTimedExits(capacity)
	timedExits[7] = true
	decisions := make([]model.Decision, capacity)
	decisions[0] = model.DecisionLong

	strat := model.Strategy{Stoploss: 0.5, ProfitTarget: 0.5, HasMaxLength: true, MaxTradeLength: 10}
	returns := make([]float64, capacity)

	sim := simulator.New(0)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)

	require.Len(trades, 1)
	require.Equal(model.ExitTimedExit, trades[0].ExitReason)
	require.Equal(7, trades[0].ExitMinute)
}

// TestReturnAttributionSumsToTradeReturn is spec.md §8 testable property 2.
func TestReturnAttributionSumsToTradeReturn(t *testing.T) {
	require := require.New(t)
	capacity := 60
	period := monotoneUpPeriod(60, capacity)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[5] = model.DecisionLong

	strat := model.Strategy{Stoploss: 0.01, ProfitTarget: 0.5, HasMaxLength: true, MaxTradeLength: 20}
	returns := make([]float64, capacity)

	sim := simulator.New(0.0005)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)
	require.Len(trades, 1)

	trade := trades[0]
	sum := 0.0
	for i := trade.EntryMinute; i <= trade.ExitMinute; i++ {
		sum += returns[i]
	}
	require.InDelta(trade.Return, sum, 1e-9)
}

// TestAtMostOnePositionAcrossEntries covers spec.md §8 testable property 3:
// an entry minute inside a prior trade's holding window is skipped.
func TestAtMostOnePositionAcrossEntries(t *testing.T) {
	require := require.New(t)
	capacity := 60
	period := monotoneUpPeriod(60, capacity)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[0] = model.DecisionLong
	decisions[3] = model.DecisionLong // inside the first trade's window

	strat := model.Strategy{Stoploss: 0.5, ProfitTarget: 0.5, HasMaxLength: true, MaxTradeLength: 20}
	returns := make([]float64, capacity)

	sim := simulator.New(0)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)

	for i := 1; i < len(trades); i++ {
		require.LessOrEqual(trades[i-1].ExitMinute, trades[i].EntryMinute)
	}
}

// TestNoEntryWhenNextBarIsPadding covers spec.md §8 testable property 4: an
// entry one bar before the padding boundary has no real open to fill at.
func TestNoEntryWhenNextBarIsPadding(t *testing.T) {
	require := require.New(t)
	capacity := 40
	period := monotoneUpPeriod(10, capacity)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[9] = model.DecisionLong // minute 9 is the last real bar; m+1 is padding

	strat := model.Strategy{Stoploss: 0.1, ProfitTarget: 0.1}
	returns := make([]float64, capacity)

	sim := simulator.New(0)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)
	require.Empty(trades)
}

func TestOneTradePerWeekStopsAfterFirst(t *testing.T) {
	require := require.New(t)
	capacity := 60
	period := monotoneUpPeriod(60, capacity)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[0] = model.DecisionLong
	decisions[40] = model.DecisionShort

	strat := model.Strategy{Stoploss: 0.5, ProfitTarget: 0.5, HasMaxLength: true, MaxTradeLength: 10, OneTradePerWeek: true}
	returns := make([]float64, capacity)

	sim := simulator.New(0)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)
	require.Len(trades, 1)
}

func TestShortTradeSlippageDirection(t *testing.T) {
	require := require.New(t)
	capacity := 40
	period := monotoneUpPeriod(40, capacity)
	timedExits := flatTimedExits(capacity)
	decisions := make([]model.Decision, capacity)
	decisions[0] = model.DecisionShort

	strat := model.Strategy{Stoploss: 0.5, ProfitTarget: 0.5, HasMaxLength: true, MaxTradeLength: 5}
	returns := make([]float64, capacity)

	sim := simulator.New(0.001)
	trades := sim.SimulatePeriod(strat, 0, period, 0, timedExits, decisions, returns)
	require.Len(trades, 1)
	trade := trades[0]
	// Short entry pays the bid: entry price below raw open.
	require.Less(trade.EntryPrice, trade.EntryPriceRaw)
	require.False(math.IsNaN(trade.Return))
}
