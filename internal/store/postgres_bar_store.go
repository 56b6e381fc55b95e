package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/internal/scorer"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// PostgresStore is the Postgres-backed implementation of every row-source
// and results-persistence interface this package declares, grounded on the
// teacher's TimescaleDBProvider (internal/data/timescaledb_provider.go):
// sql.Open("postgres", ...), $N-placeholder queries, explicit rows.Scan,
// defer rows.Close(), and a rows.Err() check after every loop.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore opens and pings a Postgres connection.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	logger := logging.GetLogger("store")

	logger.Info().Msg("opening postgres connection")
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("store: open connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	s.logger.Info().Msg("closing postgres connection")
	return s.db.Close()
}

// GetBars implements BarRowSource.
func (s *PostgresStore) GetBars(ctx context.Context, market string, start, end time.Time, barLengthMinutes int) ([]model.Bar, error) {
	query := `
		SELECT symbol, datetime, open, high, low, close, volume
		FROM ohlcv_minute_bars
		WHERE symbol = $1 AND bar_length_minutes = $2 AND datetime >= $3 AND datetime < $4
		ORDER BY datetime ASC
	`

	rows, err := s.db.QueryContext(ctx, query, market, barLengthMinutes, start, end)
	if err != nil {
		s.logger.Error().Err(err).Str("market", market).Msg("failed to query ohlcv_minute_bars")
		return nil, fmt.Errorf("store: query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var bar model.Bar
		if err := rows.Scan(&bar.Symbol, &bar.DateTime, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("store: scan bar row: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate bar rows: %w", err)
	}

	s.logger.Debug().Str("market", market).Int("bars", len(bars)).Msg("fetched bars")
	return bars, nil
}

// GetHolidays implements HolidayRowSource.
func (s *PostgresStore) GetHolidays(ctx context.Context) ([]model.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, start_time, end_time FROM holidays ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []model.Holiday
	for rows.Next() {
		var h model.Holiday
		if err := rows.Scan(&h.Name, &h.Start, &h.End); err != nil {
			return nil, fmt.Errorf("store: scan holiday row: %w", err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate holiday rows: %w", err)
	}
	return holidays, nil
}

// GetRiskEvents implements RiskEventRowSource.
func (s *PostgresStore) GetRiskEvents(ctx context.Context, market string) ([]model.RiskEvent, error) {
	query := `
		SELECT code, start_time, end_time, stop_before_minutes, resume_after_minutes
		FROM risk_events
		WHERE market = $1
		ORDER BY start_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, market)
	if err != nil {
		return nil, fmt.Errorf("store: query risk_events: %w", err)
	}
	defer rows.Close()

	var events []model.RiskEvent
	for rows.Next() {
		var (
			e                                  model.RiskEvent
			stopBeforeMin, resumeAfterMin      int
		)
		if err := rows.Scan(&e.Code, &e.Start, &e.End, &stopBeforeMin, &resumeAfterMin); err != nil {
			return nil, fmt.Errorf("store: scan risk_event row: %w", err)
		}
		e.StopBefore = time.Duration(stopBeforeMin) * time.Minute
		e.ResumeAfter = time.Duration(resumeAfterMin) * time.Minute
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate risk_event rows: %w", err)
	}
	return events, nil
}

// GetHistoricalCircuitBreakers implements CircuitBreakerRowSource.
func (s *PostgresStore) GetHistoricalCircuitBreakers(ctx context.Context, market string) ([]model.CircuitBreaker, error) {
	query := `SELECT market, start_time, end_time FROM circuit_breakers WHERE market = $1 ORDER BY start_time ASC`
	rows, err := s.db.QueryContext(ctx, query, market)
	if err != nil {
		return nil, fmt.Errorf("store: query circuit_breakers: %w", err)
	}
	defer rows.Close()

	var breakers []model.CircuitBreaker
	for rows.Next() {
		var cb model.CircuitBreaker
		if err := rows.Scan(&cb.Market, &cb.Start, &cb.End); err != nil {
			return nil, fmt.Errorf("store: scan circuit_breaker row: %w", err)
		}
		breakers = append(breakers, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate circuit_breaker rows: %w", err)
	}
	return breakers, nil
}

// GetAcceptableGaps implements AcceptableGapRowSource.
func (s *PostgresStore) GetAcceptableGaps(ctx context.Context, market string) ([]model.AcceptableGap, error) {
	query := `
		SELECT start_time, end_time, reoccur_day, reoccur_start_time, reoccur_end_time, description
		FROM acceptable_gaps
		WHERE market = $1
		ORDER BY start_time ASC
	`
	rows, err := s.db.QueryContext(ctx, query, market)
	if err != nil {
		return nil, fmt.Errorf("store: query acceptable_gaps: %w", err)
	}
	defer rows.Close()

	var gaps []model.AcceptableGap
	for rows.Next() {
		var g model.AcceptableGap
		if err := rows.Scan(&g.Start, &g.End, &g.ReoccurDay, &g.ReoccurStartTime, &g.ReoccurEndTime, &g.Description); err != nil {
			return nil, fmt.Errorf("store: scan acceptable_gap row: %w", err)
		}
		gaps = append(gaps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate acceptable_gap rows: %w", err)
	}
	return gaps, nil
}

// GetStrategy implements StrategyStore. Strategies are stored as a JSON
// blob (strategy_json) alongside their market and optimisation_date, per
// spec.md §6.
func (s *PostgresStore) GetStrategy(ctx context.Context, strategyID string) (string, time.Time, model.Strategy, error) {
	query := `SELECT market, optimisation_date, strategy_json FROM strategies WHERE strategy_id = $1`
	row := s.db.QueryRowContext(ctx, query, strategyID)

	var (
		market           string
		optimisationDate time.Time
		raw              []byte
	)
	if err := row.Scan(&market, &optimisationDate, &raw); err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, model.Strategy{}, fmt.Errorf("store: strategy %s: %w", strategyID, sql.ErrNoRows)
		}
		return "", time.Time{}, model.Strategy{}, fmt.Errorf("store: scan strategy row: %w", err)
	}

	var strat model.Strategy
	if err := json.Unmarshal(raw, &strat); err != nil {
		return "", time.Time{}, model.Strategy{}, fmt.Errorf("store: unmarshal strategy_json for %s: %w", strategyID, err)
	}
	return market, optimisationDate, strat, nil
}

// SaveTrades implements ResultsStore. Trades are keyed by
// (strategy_id, entry_datetime); a conflict overwrites (re-evaluation of
// the same strategy replaces its prior trade log).
func (s *PostgresStore) SaveTrades(ctx context.Context, strategyID string, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin trades tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (strategy_id, entry_datetime, direction, entry_price, exit_price, exit_reason, return)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id, entry_datetime) DO UPDATE SET
			direction = EXCLUDED.direction,
			entry_price = EXCLUDED.entry_price,
			exit_price = EXCLUDED.exit_price,
			exit_reason = EXCLUDED.exit_reason,
			return = EXCLUDED.return
	`)
	if err != nil {
		return fmt.Errorf("store: prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, strategyID, t.EntryDateTime, t.Direction, t.EntryPrice, t.ExitPrice, t.ExitReason.String(), t.Return); err != nil {
			return fmt.Errorf("store: insert trade at %s: %w", t.EntryDateTime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit trades tx: %w", err)
	}
	s.logger.Debug().Str("strategy_id", strategyID).Int("trades", len(trades)).Msg("saved trades")
	return nil
}

// SaveReturns implements ResultsStore. Only non-zero minutes are
// persisted, keyed by (strategy_id, datetime), per spec.md §6.
func (s *PostgresStore) SaveReturns(ctx context.Context, strategyID string, datetimes []time.Time, returns []float64) error {
	if len(datetimes) != len(returns) {
		return fmt.Errorf("store: datetimes/returns length mismatch: %d != %d", len(datetimes), len(returns))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin returns tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO minute_returns (strategy_id, datetime, return)
		VALUES ($1, $2, $3)
		ON CONFLICT (strategy_id, datetime) DO UPDATE SET return = EXCLUDED.return
	`)
	if err != nil {
		return fmt.Errorf("store: prepare return insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i, ret := range returns {
		if ret == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, strategyID, datetimes[i], ret); err != nil {
			return fmt.Errorf("store: insert return at %s: %w", datetimes[i], err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit returns tx: %w", err)
	}
	s.logger.Debug().Str("strategy_id", strategyID).Int("non_zero_minutes", written).Msg("saved returns")
	return nil
}

// SaveScore implements ResultsStore. Score rows are keyed by
// (strategy_id, optimisation_date) and upserted, per spec.md §6.
func (s *PostgresStore) SaveScore(ctx context.Context, strategyID string, optimisationDate time.Time, card scorer.Scorecard) error {
	metrics, err := json.Marshal(card.Metrics)
	if err != nil {
		return fmt.Errorf("store: marshal scorecard metrics: %w", err)
	}

	query := `
		INSERT INTO scores (strategy_id, optimisation_date, score, metrics_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (strategy_id, optimisation_date) DO UPDATE SET
			score = EXCLUDED.score,
			metrics_json = EXCLUDED.metrics_json
	`
	if _, err := s.db.ExecContext(ctx, query, strategyID, optimisationDate, card.Score, metrics); err != nil {
		return fmt.Errorf("store: upsert score: %w", err)
	}
	s.logger.Debug().Str("strategy_id", strategyID).Float64("score", card.Score).Msg("saved score")
	return nil
}

var (
	_ BarRowSource            = (*PostgresStore)(nil)
	_ HolidayRowSource        = (*PostgresStore)(nil)
	_ RiskEventRowSource      = (*PostgresStore)(nil)
	_ CircuitBreakerRowSource = (*PostgresStore)(nil)
	_ AcceptableGapRowSource  = (*PostgresStore)(nil)
	_ StrategyStore           = (*PostgresStore)(nil)
	_ ResultsStore            = (*PostgresStore)(nil)
)
