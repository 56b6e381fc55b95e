// Package coordinator implements the Work Coordinator (C8) of spec.md
// §4.8: build per-period decisions (optionally distributed across
// workers sharing the bar matrix and indicator cache), walk periods in
// order invoking the Trade Simulator, and hand the accumulated trades
// and returns to the Scorer. The worker-pool shape is grounded on the
// retrieval pack's errgroup + prometheus wiring; the ordered-drain
// buffer generalizes the teacher's `EventQueue` FIFO
// (`pkg/backtester/events.go`) from a single event stream into a
// reorder buffer for out-of-order strategy evaluations.
package coordinator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/haldorsen/fstratbt/internal/calendar"
	"github.com/haldorsen/fstratbt/internal/entrybuilder"
	"github.com/haldorsen/fstratbt/internal/indicatorcache"
	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/internal/scorer"
	"github.com/haldorsen/fstratbt/internal/simulator"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// DefaultLimitTradeCount is spec.md §4.6's default failure-control ceiling.
const DefaultLimitTradeCount = 1500

// EvaluationResult is the output of one strategy evaluation (spec.md §4.8).
type EvaluationResult struct {
	Trades       []model.Trade
	Returns      []float64
	Scorecard    scorer.Scorecard
	FailStrategy bool
}

// Coordinator runs the C5→C6→C7 pipeline for one or many strategies
// against a shared, read-only bar matrix and calendar masks.
type Coordinator struct {
	builder *entrybuilder.Builder
	sim     *simulator.Simulator
	log     zerolog.Logger
}

// New returns a Coordinator using the given Entry Builder and Trade
// Simulator.
func New(builder *entrybuilder.Builder, sim *simulator.Simulator) *Coordinator {
	return &Coordinator{builder: builder, sim: sim, log: logging.GetLogger("coordinator")}
}

// Evaluate runs one full evaluation of strat against matrix/masks: builds
// decisions for every period (fanned out across a bounded worker pool),
// simulates trades period by period in order, and scores the result.
// cache may be nil. limitTradeCount <= 0 uses DefaultLimitTradeCount.
func (c *Coordinator) Evaluate(ctx context.Context, strat model.Strategy, matrix *model.BarMatrix, masks *calendar.Masks, cache *indicatorcache.Cache, weights scorer.ScoreWeights, limitTradeCount int, asOf time.Time) (EvaluationResult, error) {
	start := time.Now()
	activeWorkers.Inc()
	defer func() {
		activeWorkers.Dec()
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()

	if limitTradeCount <= 0 {
		limitTradeCount = DefaultLimitTradeCount
	}

	decisions, err := c.buildDecisions(ctx, strat, matrix, masks, cache)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("coordinator: build decisions: %w", err)
	}

	if cache != nil {
		stats := cache.Stats()
		cacheHits.Add(float64(stats.Hits))
		cacheMisses.Add(float64(stats.Misses))
	}

	returns := make([]float64, len(matrix.AllDateTimes))
	var trades []model.Trade
	failed := false

	for p := range matrix.Periods {
		if ctx.Err() != nil {
			return EvaluationResult{}, ctx.Err()
		}

		periodTrades := c.sim.SimulatePeriod(strat, p, matrix.Periods[p], matrix.PeriodOffsets[p], masks.TimedExits[p], decisions[p], returns)
		trades = append(trades, periodTrades...)

		if len(trades) >= limitTradeCount {
			failed = true
			tradeLimitAborts.Inc()
			break
		}
	}

	if failed {
		return EvaluationResult{FailStrategy: true}, nil
	}

	card := scorer.Score(trades, returns, matrix.AllDateTimes, asOf, weights)
	logging.WithMarket(c.log, matrix.Market).Debug().Int("trades", len(trades)).Float64("score", card.Score).Msg("evaluation complete")
	return EvaluationResult{Trades: trades, Returns: returns, Scorecard: card}, nil
}

// buildDecisions computes the decisions vector for every period, fanning
// out across a worker pool bounded by GOMAXPROCS. Each goroutine writes
// only its own period's slot, so no synchronization is needed beyond the
// errgroup's own bookkeeping.
func (c *Coordinator) buildDecisions(ctx context.Context, strat model.Strategy, matrix *model.BarMatrix, masks *calendar.Masks, cache *indicatorcache.Cache) ([][]model.Decision, error) {
	periodCount := matrix.PeriodCount()
	decisions := make([][]model.Decision, periodCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for p := 0; p < periodCount; p++ {
		p := p
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			d, err := c.builder.BuildPeriod(strat, matrix, masks, p, cache)
			if err != nil {
				return fmt.Errorf("period %d: %w", p, err)
			}
			decisions[p] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// resultQueue reorders out-of-order worker completions back into input
// order before handing them to emit, the same drain-in-order contract the
// teacher's EventQueue gave its bar/order/fill stream.
type resultQueue struct {
	mu      sync.Mutex
	pending map[int]indexedResult
	next    int
	emit    func(index int, result EvaluationResult, err error)
}

type indexedResult struct {
	result EvaluationResult
	err    error
}

func newResultQueue(emit func(int, EvaluationResult, error)) *resultQueue {
	return &resultQueue{pending: make(map[int]indexedResult), emit: emit}
}

func (q *resultQueue) push(index int, result EvaluationResult, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[index] = indexedResult{result: result, err: err}
	for {
		ir, ok := q.pending[q.next]
		if !ok {
			break
		}
		delete(q.pending, q.next)
		q.emit(q.next, ir.result, ir.err)
		q.next++
	}
}

// EvaluateBatch runs many strategy evaluations in parallel over a shared,
// read-only bar matrix/masks/cache, using a worker pool sized
// min(len(strategies), GOMAXPROCS) (spec.md §5), and returns results in
// the same order as strategies regardless of completion order.
func (c *Coordinator) EvaluateBatch(ctx context.Context, strategies []model.Strategy, matrix *model.BarMatrix, masks *calendar.Masks, cache *indicatorcache.Cache, weights scorer.ScoreWeights, limitTradeCount int, asOf time.Time) ([]EvaluationResult, error) {
	results := make([]EvaluationResult, len(strategies))
	errs := make([]error, len(strategies))

	queue := newResultQueue(func(i int, r EvaluationResult, err error) {
		results[i] = r
		errs[i] = err
	})

	limit := runtime.GOMAXPROCS(0)
	if len(strategies) < limit {
		limit = len(strategies)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, strat := range strategies {
		i, strat := i, strat
		g.Go(func() error {
			r, err := c.Evaluate(gctx, strat, matrix, masks, cache, weights, limitTradeCount, asOf)
			queue.push(i, r, err)
			return nil // a single strategy's error must not abort its siblings
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		if err != nil {
			logging.WithStrategyIndex(c.log, i).Warn().Err(err).Msg("strategy evaluation failed")
		}
	}
	return results, nil
}
