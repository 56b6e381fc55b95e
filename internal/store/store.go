// Package store defines the inbound row-source interfaces and outbound
// persistence surface spec.md §6 names, plus a Postgres implementation
// grounded on the teacher's `TimescaleDBProvider`
// (`internal/data/timescaledb_provider.go`): `sql.Open("postgres", ...)`,
// `$1`-style placeholders, explicit `rows.Scan`, and a `defer rows.Close()`
// per query.
package store

import (
	"context"
	"time"

	"github.com/haldorsen/fstratbt/internal/scorer"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// BarRowSource is the Bar Store's inbound data dependency (spec.md §6
// get_bars).
type BarRowSource interface {
	GetBars(ctx context.Context, market string, start, end time.Time, barLengthMinutes int) ([]model.Bar, error)
}

// HolidayRowSource is spec.md §6 get_holidays.
type HolidayRowSource interface {
	GetHolidays(ctx context.Context) ([]model.Holiday, error)
}

// RiskEventRowSource is spec.md §6 get_risk_events.
type RiskEventRowSource interface {
	GetRiskEvents(ctx context.Context, market string) ([]model.RiskEvent, error)
}

// CircuitBreakerRowSource is spec.md §6 get_historical_circuit_breakers.
type CircuitBreakerRowSource interface {
	GetHistoricalCircuitBreakers(ctx context.Context, market string) ([]model.CircuitBreaker, error)
}

// AcceptableGapRowSource is spec.md §6 get_acceptable_gaps.
type AcceptableGapRowSource interface {
	GetAcceptableGaps(ctx context.Context, market string) ([]model.AcceptableGap, error)
}

// StrategyStore is spec.md §6's inbound Strategy store dependency.
type StrategyStore interface {
	GetStrategy(ctx context.Context, strategyID string) (market string, optimisationDate time.Time, strat model.Strategy, err error)
}

// ResultsStore is spec.md §6's optional outbound persistence surface:
// trades keyed by (strategy_id, entry_datetime), per-minute returns keyed
// by (strategy_id, datetime) and stored only for non-zero minutes, and
// score rows keyed by (strategy_id, optimisation_date), upserted.
type ResultsStore interface {
	SaveTrades(ctx context.Context, strategyID string, trades []model.Trade) error
	SaveReturns(ctx context.Context, strategyID string, datetimes []time.Time, returns []float64) error
	SaveScore(ctx context.Context, strategyID string, optimisationDate time.Time, card scorer.Scorecard) error
}
