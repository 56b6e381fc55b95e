// Command backtester runs one or many strategy evaluations against a
// single market's bar matrix, following the flag-parsing and
// connection-string-assembly idiom of the teacher's own
// cmd/backtester/main.go, rewired end to end for the vectorized
// backtest kernel spec.md describes: Bar Store → Trading Calendar →
// Indicator Cache/Entry Builder → Trade Simulator → Scorer, orchestrated
// by the Work Coordinator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/haldorsen/fstratbt/internal/barstore"
	"github.com/haldorsen/fstratbt/internal/calendar"
	"github.com/haldorsen/fstratbt/internal/config"
	"github.com/haldorsen/fstratbt/internal/coordinator"
	"github.com/haldorsen/fstratbt/internal/entrybuilder"
	"github.com/haldorsen/fstratbt/internal/indicatorcache"
	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/internal/simulator"
	"github.com/haldorsen/fstratbt/internal/store"
	"github.com/haldorsen/fstratbt/pkg/model"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file (optional; flags/env override it)")
		market     = flag.String("market", "", "Market to backtest (e.g. CL)")
		startDate  = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "End date (YYYY-MM-DD)")
		resetFlag  = flag.String("reset", "", "Indicator reset: daily or weekly")
		stratsPath = flag.String("strategies", "", "Path to a YAML strategy fixture file")
		persist    = flag.Bool("persist", false, "Persist trades, returns, and scores to the configured database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *market != "" {
		cfg.Market = *market
	}
	if *startDate != "" {
		cfg.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.EndDate = *endDate
	}
	if *resetFlag != "" {
		cfg.IndicatorReset = *resetFlag
	}
	if *stratsPath != "" {
		cfg.StrategiesPath = *stratsPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logging.Initialize(cfg.Logging)
	logger := logging.GetLogger("main")

	start, err := time.Parse("2006-01-02", cfg.StartDate)
	if err != nil {
		log.Fatalf("invalid start date %q: %v", cfg.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", cfg.EndDate)
	if err != nil {
		log.Fatalf("invalid end date %q: %v", cfg.EndDate, err)
	}
	end = end.Add(24 * time.Hour)

	reset := model.ResetWeekly
	if cfg.IndicatorReset == "daily" {
		reset = model.ResetDaily
	}

	strategies, err := config.LoadStrategies(cfg.StrategiesPath)
	if err != nil {
		log.Fatalf("load strategies: %v", err)
	}
	logger.Info().Int("strategies", len(strategies)).Msg("strategies loaded")

	db, err := store.NewPostgresStore(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	holidays, err := db.GetHolidays(ctx)
	if err != nil {
		log.Fatalf("load holidays: %v", err)
	}
	riskEvents, err := db.GetRiskEvents(ctx, cfg.Market)
	if err != nil {
		log.Fatalf("load risk events: %v", err)
	}
	breakers, err := db.GetHistoricalCircuitBreakers(ctx, cfg.Market)
	if err != nil {
		log.Fatalf("load circuit breakers: %v", err)
	}

	barBuilder := barstore.NewBuilder(db)
	matrix, err := barBuilder.Build(ctx, cfg.Market, start, end, reset, holidays)
	if err != nil {
		log.Fatalf("build bar matrix: %v", err)
	}

	calBuilder := calendar.NewBuilder()
	masks := calBuilder.Build(matrix, holidays, riskEvents, breakers)

	cache := indicatorcache.New(cfg.IndicatorCacheCapacity, matrix.PeriodCount())

	coord := coordinator.New(entrybuilder.NewBuilder(), simulator.New(cfg.Slippage))

	results, err := coord.EvaluateBatch(ctx, strategies, matrix, masks, cache, cfg.ScoreWeights, cfg.LimitTradeCount, end)
	if err != nil {
		log.Fatalf("evaluate strategies: %v", err)
	}

	for i, r := range results {
		if r.FailStrategy {
			fmt.Printf("strategy %d: FAILED (trade limit exceeded)\n", i)
			continue
		}
		fmt.Printf("strategy %d: trades=%d score=%.4f edge=%.4f\n",
			i, len(r.Trades), r.Scorecard.Score, r.Scorecard.Metrics["edge_better_than_random0"])

		if *persist {
			strategyID := fmt.Sprintf("%s-%d", cfg.Market, i)
			if err := db.SaveTrades(ctx, strategyID, r.Trades); err != nil {
				logger.Error().Err(err).Str("strategy_id", strategyID).Msg("save trades failed")
			}
			if err := db.SaveReturns(ctx, strategyID, matrix.AllDateTimes, r.Returns); err != nil {
				logger.Error().Err(err).Str("strategy_id", strategyID).Msg("save returns failed")
			}
			if err := db.SaveScore(ctx, strategyID, end, r.Scorecard); err != nil {
				logger.Error().Err(err).Str("strategy_id", strategyID).Msg("save score failed")
			}
		}
	}
}
