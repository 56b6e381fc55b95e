// Package scorer implements the Scorer (C7) of spec.md §4.7: given a
// strategy's realized trades and per-minute return series, computes a
// scorecard over the lookback-window grid {0,520,208,156,104,52,26,13,8,4}
// weeks (0 meaning all-time) plus a deterministic overall score. Field
// naming and the edge-vs-random formula are grounded on
// `original_source/build_scores.py`'s `calculate_oos_edge_statistics`
// (`edge_better_than_random0`, `trade_win_over_loss0`); the statistic set
// and reporting shape follow the teacher's `Results.CalculateMetrics`
// (`pkg/backtester/results.go`).
package scorer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/haldorsen/fstratbt/pkg/model"
)

// LookbackWindowsWeeks is the fixed grid spec.md §4.7 requires; 0 means
// all-time (no lower bound on entry datetime).
var LookbackWindowsWeeks = []int{0, 520, 208, 156, 104, 52, 26, 13, 8, 4}

// ScoreWeights combines a subset of the all-time (window 0) window's
// metrics into the single deterministic `score` spec.md §4.7 says is "not
// part of the core contract beyond being a deterministic function of the
// scorecard and a configuration". Loaded from YAML by internal/config.
type ScoreWeights struct {
	MinSharpes float64 `yaml:"min_sharpes"`
	Tawal      float64 `yaml:"tawal"`
	NMR        float64 `yaml:"nmr"`
	Edge       float64 `yaml:"edge_better_than_random"`
	WinRate    float64 `yaml:"trade_win_rate"`
}

// Scorecard is the full per-window metric set plus the overall score.
// Metrics is keyed by "<metric_name><window_weeks>", e.g.
// "edge_better_than_random0", "tawal52" — matching spec.md §4.7's
// per-window-suffix field naming.
type Scorecard struct {
	Metrics map[string]float64
	Score   float64
}

const (
	metricTradeCount        = "trade_count"
	metricTradeWinRate      = "trade_win_rate"
	metricTradeWinOverLoss  = "trade_win_over_loss"
	metricAverageTrade      = "average_trade"
	metricMinSharpes        = "min_sharpes"
	metricTawal             = "tawal"
	metricNMR               = "nmr"
	metricEdge              = "edge_better_than_random"
	metricProfitTargetPct   = "profit_target_pct"
	metricStopLossPct       = "stop_loss_pct"
	metricCostPct           = "cost_pct"
	metricMaxWeekTradeCount = "max_week_trade_count"
	metricMaxDayTradeCount  = "max_day_trade_count"
)

// Score computes the full scorecard for one strategy evaluation's trades
// and per-minute return series, as of asOf (normally the evaluation's
// end-of-range datetime). returns and datetimes must be the same length
// and aligned index-for-index (the shape EvaluationResult.Returns and
// BarMatrix.AllDateTimes already share).
func Score(trades []model.Trade, returns []float64, datetimes []time.Time, asOf time.Time, weights ScoreWeights) Scorecard {
	metrics := make(map[string]float64, len(LookbackWindowsWeeks)*13)

	for _, weeks := range LookbackWindowsWeeks {
		windowTrades := inWindow(trades, asOf, weeks)
		windowReturns, windowDatetimes := inWindowReturns(returns, datetimes, asOf, weeks)
		for name, value := range windowMetrics(windowTrades, windowReturns, windowDatetimes) {
			metrics[fmt.Sprintf("%s%d", name, weeks)] = value
		}
	}

	return Scorecard{
		Metrics: metrics,
		Score:   weights.apply(metrics),
	}
}

func (w ScoreWeights) apply(metrics map[string]float64) float64 {
	return w.MinSharpes*metrics[metricMinSharpes+"0"] +
		w.Tawal*metrics[metricTawal+"0"] +
		w.NMR*metrics[metricNMR+"0"] +
		w.Edge*metrics[metricEdge+"0"] +
		w.WinRate*metrics[metricTradeWinRate+"0"]
}

// inWindow returns the trades whose entry falls within the last `weeks`
// weeks before asOf; weeks==0 means all-time (every trade).
func inWindow(trades []model.Trade, asOf time.Time, weeks int) []model.Trade {
	if weeks == 0 {
		return trades
	}
	cutoff := asOf.Add(-time.Duration(weeks) * 7 * 24 * time.Hour)
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if !t.EntryDateTime.Before(cutoff) && !t.EntryDateTime.After(asOf) {
			out = append(out, t)
		}
	}
	return out
}

// inWindowReturns applies the same cutoff as inWindow to an aligned
// per-minute return/datetime series.
func inWindowReturns(returns []float64, datetimes []time.Time, asOf time.Time, weeks int) ([]float64, []time.Time) {
	if weeks == 0 {
		return returns, datetimes
	}
	cutoff := asOf.Add(-time.Duration(weeks) * 7 * 24 * time.Hour)
	outR := make([]float64, 0, len(returns))
	outT := make([]time.Time, 0, len(datetimes))
	for i, dt := range datetimes {
		if !dt.Before(cutoff) && !dt.After(asOf) {
			outR = append(outR, returns[i])
			outT = append(outT, dt)
		}
	}
	return outR, outT
}

// windowMetrics computes the unsuffixed metric set for one window's trades
// and its aligned per-minute return series.
func windowMetrics(trades []model.Trade, returns []float64, datetimes []time.Time) map[string]float64 {
	n := len(trades)
	out := map[string]float64{
		metricTradeCount: float64(n),
	}
	if n == 0 {
		return out
	}

	var winSum, lossSum, retSum, costSum float64
	var wins, losses, profitTargetExits, stopLossExits int

	for _, t := range trades {
		retSum += t.Return
		if t.Return > 0 {
			wins++
			winSum += t.Return
		} else if t.Return < 0 {
			losses++
			lossSum += t.Return
		}
		switch t.ExitReason {
		case model.ExitProfitTarget:
			profitTargetExits++
		case model.ExitStoploss:
			stopLossExits++
		}
		if t.EntryPriceRaw != 0 {
			costSum += math.Abs(t.EntryPrice-t.EntryPriceRaw) / t.EntryPriceRaw
		}
		if t.ExitPriceRaw != 0 {
			costSum += math.Abs(t.ExitPrice-t.ExitPriceRaw) / t.ExitPriceRaw
		}
	}

	winRate := float64(wins) / float64(n)
	avgWin := safeDiv(winSum, float64(wins))
	avgLoss := safeDiv(lossSum, float64(losses))
	avgTrade := retSum / float64(n)
	winOverLoss := safeDiv(avgWin, math.Abs(avgLoss))

	out[metricTradeWinRate] = winRate
	out[metricTradeWinOverLoss] = winOverLoss
	out[metricAverageTrade] = avgTrade
	out[metricMinSharpes] = minWeeklySharpeFromReturns(returns, datetimes)
	// TAWAL (trade-adjusted win-adjusted loss): weights the win/loss split
	// by how lopsided the trade count is, not just the magnitudes already
	// captured by average_trade.
	out[metricTawal] = (float64(wins)-float64(losses))/float64(n)*avgWin + avgLoss
	// NMR (net-of-minute-return): summed directly off the minute-return
	// series rather than the trade return (spec.md §8 property 2 says the
	// two agree to 1e-9, but the minute series is the input C7 is
	// specified to consume).
	out[metricNMR] = sumReturns(returns)
	randomWinRate := 1 - winOverLoss/(winOverLoss+1)
	out[metricEdge] = winRate - randomWinRate
	out[metricProfitTargetPct] = float64(profitTargetExits) / float64(n)
	out[metricStopLossPct] = float64(stopLossExits) / float64(n)
	out[metricCostPct] = costSum / float64(n)
	out[metricMaxWeekTradeCount] = float64(maxBucketCount(trades, weekKey))
	out[metricMaxDayTradeCount] = float64(maxBucketCount(trades, dayKey))

	return out
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// minWeeklySharpeFromReturns buckets non-zero per-minute returns by ISO
// week (mirroring internal/store.SaveReturns's "only non-zero minutes"
// persistence rule — a minute with no open position contributes no
// return, zero or otherwise) and returns the minimum Sharpe-like ratio
// (mean/stddev) across weeks with at least two such minutes: a worst-week
// robustness statistic computed off the minute-level return time series
// spec.md §4.7 calls for, distinct from the window's single aggregate
// Sharpe.
func minWeeklySharpeFromReturns(returns []float64, datetimes []time.Time) float64 {
	buckets := make(map[string][]float64)
	for i, r := range returns {
		if r == 0 {
			continue
		}
		k := isoWeekKey(datetimes[i])
		buckets[k] = append(buckets[k], r)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	min := math.Inf(1)
	found := false
	for _, k := range keys {
		rets := buckets[k]
		if len(rets) < 2 {
			continue
		}
		s := sharpe(rets)
		if !found || s < min {
			min = s
			found = true
		}
	}
	if !found {
		return 0
	}
	return min
}

// sumReturns sums a per-minute return series; it is the window's net
// minute-level return, which spec.md §8 property 2 guarantees equals the
// sum of the window's trade returns.
func sumReturns(returns []float64) float64 {
	var sum float64
	for _, r := range returns {
		sum += r
	}
	return sum
}

func sharpe(returns []float64) float64 {
	n := float64(len(returns))
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= n

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= n - 1
	stdDev := math.Sqrt(variance)
	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}

// isoWeekKey is the shared ISO-week bucketing key for both trade-keyed
// and minute-return-keyed aggregation.
func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func weekKey(t model.Trade) string {
	return isoWeekKey(t.EntryDateTime)
}

func dayKey(t model.Trade) string {
	return t.EntryDateTime.Format("2006-01-02")
}

func maxBucketCount(trades []model.Trade, keyFn func(model.Trade) string) int {
	counts := make(map[string]int)
	max := 0
	for _, t := range trades {
		k := keyFn(t)
		counts[k]++
		if counts[k] > max {
			max = counts[k]
		}
	}
	return max
}
