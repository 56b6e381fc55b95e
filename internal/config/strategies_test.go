package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/config"
	"github.com/haldorsen/fstratbt/pkg/model"
)

func TestLoadStrategiesParsesFixtures(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	require.NoError(os.WriteFile(path, []byte(`
- stoploss: 0.01
  profit_target: 0.02
  session: 0
  has_max_length: true
  max_trade_length: 60
  monday: true
  tuesday: true
  wednesday: true
  thursday: true
  friday: true
  take_every_signal: true
  indicator_reset: 1
  indicators:
    - name: SMA_With
      params:
        bar_type: 1
        timeperiod: 30
`), 0o644))

	strategies, err := config.LoadStrategies(path)
	require.NoError(err)
	require.Len(strategies, 1)
	strat := strategies[0]
	require.Equal(model.SessionAll, strat.Session)
	require.Equal(model.ResetWeekly, strat.IndicatorReset)
	require.Len(strat.Indicators, 1)
	require.Equal("SMA_With", strat.Indicators[0].Name)
	require.Equal(30.0, strat.Indicators[0].Params["timeperiod"])
}

func TestLoadStrategiesRejectsInvalidFixture(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	require.NoError(os.WriteFile(path, []byte(`
- stoploss: 10
  profit_target: 0.02
  indicators:
    - name: SMA_With
      params:
        timeperiod: 30
`), 0o644))

	_, err := config.LoadStrategies(path)
	require.Error(err)
}
