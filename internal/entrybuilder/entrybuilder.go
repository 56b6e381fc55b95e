// Package entrybuilder implements the Entry Builder (C5) of spec.md §4.5:
// for each period, combine the calendar masks and every indicator's
// long/short signal into a single decisions[] vector of
// {short=-1, flat=0, long=+1}, applying the cooldown/tie-break state
// machine that prevents duplicate entries in the same direction.
package entrybuilder

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haldorsen/fstratbt/internal/calendar"
	"github.com/haldorsen/fstratbt/internal/indicator"
	"github.com/haldorsen/fstratbt/internal/indicatorcache"
	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// Builder runs the decision-reduction algorithm of spec.md §4.5.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder returns an Entry Builder.
func NewBuilder() *Builder {
	return &Builder{log: logging.GetLogger("entrybuilder")}
}

// indicatorSignal holds one indicator's full-capacity long/short vectors
// for a single period.
type indicatorSignal struct {
	long, short []bool
}

// BuildPeriod computes the decisions vector for a single period. cache may
// be nil, in which case every indicator is computed directly.
func (b *Builder) BuildPeriod(strat model.Strategy, matrix *model.BarMatrix, masks *calendar.Masks, p int, cache *indicatorcache.Cache) ([]model.Decision, error) {
	capacity := matrix.Capacity
	period := matrix.Periods[p]

	allowed := make([]bool, capacity)
	copy(allowed, masks.AllowedEntrySessions[p][strat.Session])
	for i := range allowed {
		allowed[i] = allowed[i] && !masks.TimedExits[p][i]
	}

	if !strat.AllDaysPermitted() {
		permitted := strat.PermittedDays()
		for i := range allowed {
			if !allowed[i] {
				continue
			}
			anyDay := false
			for d, ok := range permitted {
				if ok && masks.AllowedEntryDays[p][d][i] {
					anyDay = true
					break
				}
			}
			allowed[i] = anyDay
		}
	}

	if strat.HasMaxLength {
		before := entriesBeforeExit(masks.TimedExits[p], strat.MaxTradeLength)
		for i := range allowed {
			allowed[i] = allowed[i] && before[i]
		}
	}

	signals := make([]indicatorSignal, len(strat.Indicators))
	maxLookback := 0
	for i, spec := range strat.Indicators {
		kind := indicator.Kind(spec.Name)
		lookback, err := indicator.MaxLookback(kind, spec.Params)
		if err != nil {
			return nil, err
		}
		if lookback > maxLookback {
			maxLookback = lookback
		}

		long, short, err := b.computeSignal(spec, kind, matrix, p, cache)
		if err != nil {
			return nil, err
		}
		signals[i] = indicatorSignal{long: long, short: short}
	}

	for i := 0; i < maxLookback && i < capacity; i++ {
		allowed[i] = false
	}

	return reduce(allowed, signals, strat.TakeEverySignal), nil
}

// computeSignal resolves one indicator's signal for periodIdx, via the
// cache when available. The cache's first access to a fingerprint builds
// every period at once (indicatorcache.Cache is sized for the whole
// matrix), so the ComputeFunc must be able to compute any period on
// request, not just periodIdx.
func (b *Builder) computeSignal(spec model.IndicatorSpec, kind indicator.Kind, matrix *model.BarMatrix, periodIdx int, cache *indicatorcache.Cache) (long, short []bool, err error) {
	compute := func(p int) ([]bool, []bool, error) {
		period := matrix.Periods[p]
		return indicator.Compute(kind, period.Bars, period.Length, spec.Params)
	}

	if cache != nil {
		sig, ok, cerr := cache.Get(spec.Fingerprint(), periodIdx, compute)
		if cerr != nil {
			return nil, nil, cerr
		}
		if ok {
			return sig.Long, sig.Short, nil
		}
		// Cache refused a slot (capacity exhausted): fall back to direct
		// computation, per spec.md §4.4 Eviction.
	}
	return compute(periodIdx)
}

// entriesBeforeExit implements spec.md §4.5 step 2: minute m is allowed
// only if no timed_exits[m..m+maxTradeLength] is true. Computed via a
// suffix count of timed-exit minutes so each window check is O(1).
func entriesBeforeExit(timedExits []bool, maxTradeLength int) []bool {
	n := len(timedExits)
	suffixExits := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		suffixExits[i] = suffixExits[i+1]
		if timedExits[i] {
			suffixExits[i]++
		}
	}

	out := make([]bool, n)
	for i := 0; i < n; i++ {
		end := i + maxTradeLength
		if end >= n {
			end = n - 1
		}
		exitsInWindow := suffixExits[i] - suffixExits[end+1]
		out[i] = exitsInWindow == 0
	}
	return out
}

// aggregate combines every indicator's signal for one minute per spec.md
// §4.5 step "Otherwise aggregate across indicators".
func aggregate(signals []indicatorSignal, m int) model.Decision {
	for _, s := range signals {
		if !s.long[m] && !s.short[m] {
			return model.DecisionFlat
		}
	}
	sawLong, sawShort := false, false
	for _, s := range signals {
		l, sh := s.long[m], s.short[m]
		if l && sh {
			continue // "unknown": does not object to either direction
		}
		if l {
			sawLong = true
		}
		if sh {
			sawShort = true
		}
	}
	switch {
	case sawLong && sawShort:
		return model.DecisionFlat
	case sawLong:
		return model.DecisionLong
	case sawShort:
		return model.DecisionShort
	default:
		return model.DecisionFlat
	}
}

// anySignals reports whether at least one indicator is non-neutral at m,
// the condition that holds a cooldown open.
func anySignals(signals []indicatorSignal, m int) bool {
	for _, s := range signals {
		if s.long[m] || s.short[m] {
			return true
		}
	}
	return false
}

// reduce runs the per-minute decision-reduction state machine of spec.md
// §4.5 step 5.
func reduce(allowed []bool, signals []indicatorSignal, takeEverySignal bool) []model.Decision {
	decisions := make([]model.Decision, len(allowed))
	prev := model.DecisionFlat
	cooldown := false

	for m := range allowed {
		if cooldown && anySignals(signals, m) {
			decisions[m] = model.DecisionFlat
			continue
		}
		cooldown = false

		if !allowed[m] {
			prev = model.DecisionFlat
			decisions[m] = model.DecisionFlat
			continue
		}

		agg := aggregate(signals, m)

		if agg == prev && agg.IsDirectional() {
			decisions[m] = model.DecisionFlat
			continue
		}

		decisions[m] = agg
		prev = agg
		if agg.IsDirectional() {
			cooldown = true
		}
	}

	_ = takeEverySignal // consumed by the Trade Simulator's next-signal exit, not here
	return decisions
}

// BuildAll computes decisions for every period in the matrix.
func (b *Builder) BuildAll(strat model.Strategy, matrix *model.BarMatrix, masks *calendar.Masks, cache *indicatorcache.Cache) ([][]model.Decision, error) {
	out := make([][]model.Decision, matrix.PeriodCount())
	for p := range matrix.Periods {
		d, err := b.BuildPeriod(strat, matrix, masks, p, cache)
		if err != nil {
			return nil, fmt.Errorf("entrybuilder: period %d: %w", p, err)
		}
		out[p] = d
	}
	return out, nil
}
