package scorer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/scorer"
	"github.com/haldorsen/fstratbt/pkg/model"
)

func trade(entry time.Time, ret float64, reason model.ExitReason) model.Trade {
	return model.Trade{
		EntryDateTime: entry,
		Return:        ret,
		ExitReason:    reason,
		EntryPriceRaw: 100,
		EntryPrice:    100.05,
		ExitPriceRaw:  101,
		ExitPrice:     100.95,
	}
}

func TestEmptyTradesYieldZeroedWindows(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	card := scorer.Score(nil, nil, nil, asOf, scorer.ScoreWeights{})
	for _, weeks := range scorer.LookbackWindowsWeeks {
		require.Equal(0.0, card.Metrics["trade_count"+itoa(weeks)])
	}
	require.Equal(0.0, card.Score)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestWindowFiltersByEntryDateTime(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	recent := trade(asOf.Add(-2*24*time.Hour), 0.01, model.ExitProfitTarget)
	old := trade(asOf.Add(-400*24*time.Hour), -0.02, model.ExitStoploss)

	card := scorer.Score([]model.Trade{recent, old}, nil, nil, asOf, scorer.ScoreWeights{})

	require.Equal(2.0, card.Metrics["trade_count0"])
	require.Equal(1.0, card.Metrics["trade_count4"], "4-week window should only see the recent trade")
	require.Equal(0.0, card.Metrics["trade_count520"]-card.Metrics["trade_count0"], "520-week window covers both trades in this fixture")
}

func TestWinRateAndEdgeAreBounded(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	trades := []model.Trade{
		trade(asOf.Add(-1*time.Hour), 0.02, model.ExitProfitTarget),
		trade(asOf.Add(-2*time.Hour), 0.01, model.ExitProfitTarget),
		trade(asOf.Add(-3*time.Hour), -0.015, model.ExitStoploss),
	}

	card := scorer.Score(trades, nil, nil, asOf, scorer.ScoreWeights{})
	winRate := card.Metrics["trade_win_rate0"]
	require.InDelta(2.0/3.0, winRate, 1e-9)
	require.InDelta(2.0/3.0, card.Metrics["profit_target_pct0"], 1e-9)
	require.InDelta(1.0/3.0, card.Metrics["stop_loss_pct0"], 1e-9)
	// avg win 0.015 over avg loss 0.015 gives win/loss 1, a random win rate
	// of 0.5, and an edge of 2/3 - 1/2.
	require.InDelta(1.0/6.0, card.Metrics["edge_better_than_random0"], 1e-9)
}

func TestScoreIsDeterministicWeightedSum(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		trade(asOf.Add(-1*time.Hour), 0.02, model.ExitProfitTarget),
		trade(asOf.Add(-2*time.Hour), -0.01, model.ExitStoploss),
	}
	weights := scorer.ScoreWeights{WinRate: 10, NMR: 1}

	card := scorer.Score(trades, nil, nil, asOf, weights)
	expected := weights.WinRate*card.Metrics["trade_win_rate0"] + weights.NMR*card.Metrics["nmr0"]
	require.InDelta(expected, card.Score, 1e-9)
}

func TestMaxBucketTradeCountsAreNonNegative(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		trade(asOf.Add(-1*time.Hour), 0.01, model.ExitProfitTarget),
		trade(asOf.Add(-2*time.Hour), 0.01, model.ExitProfitTarget),
	}

	card := scorer.Score(trades, nil, nil, asOf, scorer.ScoreWeights{})
	require.Equal(2.0, card.Metrics["max_day_trade_count0"])
	require.Equal(2.0, card.Metrics["max_week_trade_count0"])
}

// TestNMRMatchesSummedMinuteReturns checks spec.md §8 property 2: the
// window's nmr metric equals the sum of its per-minute return series, and
// is derived from that series rather than from trade P&L.
func TestNMRMatchesSummedMinuteReturns(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	trades := []model.Trade{trade(asOf.Add(-1*time.Hour), 0.03, model.ExitProfitTarget)}
	datetimes := []time.Time{
		asOf.Add(-90 * time.Minute),
		asOf.Add(-70 * time.Minute),
		asOf.Add(-50 * time.Minute),
	}
	returns := []float64{0.01, 0.0, 0.02}

	card := scorer.Score(trades, returns, datetimes, asOf, scorer.ScoreWeights{})
	require.InDelta(0.03, card.Metrics["nmr0"], 1e-9)
}

// TestMinSharpesDerivedFromMinuteReturns checks that min_sharpes is
// computed from the non-zero per-minute return series bucketed by ISO
// week, not from trade-level returns.
func TestMinSharpesDerivedFromMinuteReturns(t *testing.T) {
	require := require.New(t)
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Two non-zero minutes in the same ISO week. With no trades the window
	// computes only trade_count, so min_sharpes is 0; with a single trade
	// (too few trade returns for a Sharpe) it is derived from the two
	// minute returns and is non-zero.
	datetimes := []time.Time{
		asOf.Add(-2 * time.Minute),
		asOf.Add(-1 * time.Minute),
	}
	returns := []float64{0.01, -0.02}

	card := scorer.Score(nil, returns, datetimes, asOf, scorer.ScoreWeights{})
	require.Equal(0.0, card.Metrics["min_sharpes0"], "no trades means no window metrics computed at all")

	trades := []model.Trade{trade(asOf.Add(-2*time.Minute), 0.01, model.ExitProfitTarget)}
	card = scorer.Score(trades, returns, datetimes, asOf, scorer.ScoreWeights{})
	require.NotEqual(0.0, card.Metrics["min_sharpes0"])
}
