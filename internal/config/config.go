// Package config loads the immutable runtime Config: database connection
// settings, logging, and the evaluation defaults (slippage, trade-count
// ceiling, indicator cache capacity, score weights). Structure and the
// connection-string assembly follow the teacher's `cmd/backtester/main.go`
// flag/env style and its (declared but never wired) `yaml:"..."` struct
// tags (`pkg/backtester/events.go`'s `Config`, `pkg/logging/logger.go`'s
// `Config`); this package is where those tags are finally exercised via
// `gopkg.in/yaml.v3`, with `.env` overrides layered on top via
// `github.com/joho/godotenv`, both declared in the teacher's go.mod but
// unused in its own code.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/internal/scorer"
)

// DatabaseConfig holds the Postgres connection settings (spec.md §6's
// relational Bar Store / Strategy Store backend).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString assembles a lib/pq connection string, matching the
// teacher's `main.go` connStr format.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Config is the full, immutable runtime configuration for one backtester
// invocation.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Logging  logging.Config  `yaml:"logging"`

	Market         string `yaml:"market"`
	StartDate      string `yaml:"start_date"` // "2006-01-02"
	EndDate        string `yaml:"end_date"`
	IndicatorReset string `yaml:"indicator_reset"` // "daily" or "weekly"
	StrategiesPath string `yaml:"strategies_path"`

	Slippage               float64             `yaml:"slippage"`
	LimitTradeCount        int                 `yaml:"limit_trade_count"`
	IndicatorCacheCapacity int                 `yaml:"indicator_cache_capacity"`
	ScoreWeights           scorer.ScoreWeights `yaml:"score_weights"`
}

// Default returns the baseline Config that Load starts from before the
// YAML file and environment overrides are applied.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", User: "postgres", Name: "fstratbt", SSLMode: "disable",
		},
		Logging:                logging.Config{Level: logging.LevelInfo, Pretty: true},
		IndicatorReset:         "weekly",
		Slippage:               0.0005,
		LimitTradeCount:        1500,
		IndicatorCacheCapacity: 256,
	}
}

// Load reads a YAML config file at path (if it exists), overlays any
// `.env` file in the working directory, then overlays explicit
// environment variables, following the teacher's layered
// flag-then-env-then-default precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// godotenv.Load is best-effort: a missing .env file is not an error,
	// matching the teacher's flag defaults falling through silently.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Database.Host, "FSTRATBT_DB_HOST")
	overrideString(&cfg.Database.Port, "FSTRATBT_DB_PORT")
	overrideString(&cfg.Database.User, "FSTRATBT_DB_USER")
	overrideString(&cfg.Database.Password, "FSTRATBT_DB_PASSWORD")
	overrideString(&cfg.Database.Name, "FSTRATBT_DB_NAME")
	overrideString(&cfg.Market, "FSTRATBT_MARKET")
	overrideString(&cfg.StartDate, "FSTRATBT_START_DATE")
	overrideString(&cfg.EndDate, "FSTRATBT_END_DATE")
	overrideString(&cfg.StrategiesPath, "FSTRATBT_STRATEGIES_PATH")
	overrideFloat(&cfg.Slippage, "FSTRATBT_SLIPPAGE")
	overrideInt(&cfg.LimitTradeCount, "FSTRATBT_LIMIT_TRADE_COUNT")
	overrideInt(&cfg.IndicatorCacheCapacity, "FSTRATBT_INDICATOR_CACHE_CAPACITY")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the fields needed before an evaluation can run.
func (c Config) Validate() error {
	if c.Market == "" {
		return fmt.Errorf("config: market is required")
	}
	if c.IndicatorReset != "daily" && c.IndicatorReset != "weekly" {
		return fmt.Errorf("config: indicator_reset must be 'daily' or 'weekly', got %q", c.IndicatorReset)
	}
	if c.Slippage < 0 {
		return fmt.Errorf("config: slippage must be non-negative, got %g", c.Slippage)
	}
	if c.LimitTradeCount <= 0 {
		return fmt.Errorf("config: limit_trade_count must be positive, got %d", c.LimitTradeCount)
	}
	return nil
}
