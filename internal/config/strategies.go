package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haldorsen/fstratbt/pkg/model"
)

// indicatorFixture is the YAML shape of one Strategy.Indicators entry.
type indicatorFixture struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

// strategyFixture is the YAML shape of one Strategy fixture, matching
// spec.md §6's JSON strategy_json encoding field-for-field (enum values as
// integers for session/indicator_reset).
type strategyFixture struct {
	Stoploss       float64            `yaml:"stoploss"`
	ProfitTarget   float64            `yaml:"profit_target"`
	Session        int                `yaml:"session"`
	MaxTradeLength int                `yaml:"max_trade_length"`
	HasMaxLength   bool               `yaml:"has_max_length"`
	Monday         bool               `yaml:"monday"`
	Tuesday        bool               `yaml:"tuesday"`
	Wednesday      bool               `yaml:"wednesday"`
	Thursday       bool               `yaml:"thursday"`
	Friday         bool               `yaml:"friday"`
	TakeEverySignal bool              `yaml:"take_every_signal"`
	OneTradePerWeek bool              `yaml:"one_trade_per_week"`
	IndicatorReset  int               `yaml:"indicator_reset"`
	Indicators      []indicatorFixture `yaml:"indicators"`
}

func (f strategyFixture) toModel() model.Strategy {
	indicators := make([]model.IndicatorSpec, len(f.Indicators))
	for i, ind := range f.Indicators {
		indicators[i] = model.IndicatorSpec{Name: ind.Name, Params: ind.Params}
	}
	return model.Strategy{
		Stoploss:        f.Stoploss,
		ProfitTarget:    f.ProfitTarget,
		Session:         model.Session(f.Session),
		MaxTradeLength:  f.MaxTradeLength,
		HasMaxLength:    f.HasMaxLength,
		Monday:          f.Monday,
		Tuesday:         f.Tuesday,
		Wednesday:       f.Wednesday,
		Thursday:        f.Thursday,
		Friday:          f.Friday,
		TakeEverySignal: f.TakeEverySignal,
		OneTradePerWeek: f.OneTradePerWeek,
		IndicatorReset:  model.ResetType(f.IndicatorReset),
		Indicators:      indicators,
	}
}

// LoadStrategies reads a YAML list of strategy fixtures from path and
// validates each one, returning the first validation error encountered
// (spec.md §7: InvalidStrategy is fatal and rejected before evaluation).
func LoadStrategies(path string) ([]model.Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read strategies %s: %w", path, err)
	}

	var fixtures []strategyFixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("config: parse strategies %s: %w", path, err)
	}

	strategies := make([]model.Strategy, len(fixtures))
	for i, f := range fixtures {
		strat := f.toModel()
		if err := strat.Validate(); err != nil {
			return nil, fmt.Errorf("config: strategy %d: %w", i, err)
		}
		strategies[i] = strat
	}
	return strategies, nil
}
