package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest-lab/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
run:
  start: "2022-01-03"
  end: "2022-12-30"
data:
  source: csv
  csv_dir: /tmp/bars
  instruments: [AAPL, MSFT]
log:
  format: console
strategy:
  atr_len: 10
risk:
  base_risk_pct: 0.015
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2022-01-03", cfg.Run.Start)
	assert.Equal(t, 4, cfg.Run.PrepWorkers, "default kept")
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Data.Instruments)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Strategy.ATRLen)
	assert.Equal(t, 0.015, cfg.Risk.BaseRiskPct)
	assert.Equal(t, domain.DefaultAggregationConfig(), cfg.Aggregation, "untouched section keeps defaults")
	assert.Equal(t, domain.DefaultStrategyConfig().SwingLeft, cfg.Strategy.SwingLeft, "untouched key keeps default")
	require.NoError(t, cfg.Validate())
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, "run:\n  stat: \"2022-01-03\"\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Data.Instruments = []string{"AAPL"}
	cfg.Slippage.Seed = 99

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPostgresDSN: " postgres://u:p@db:5432/bt ",
	}
	cfg := Default()
	cfg.Storage.ClickhouseDSN = "clickhouse://file"
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "postgres://u:p@db:5432/bt", cfg.Storage.PostgresDSN)
	assert.Equal(t, "clickhouse://file", cfg.Storage.ClickhouseDSN, "unset variable keeps file value")
}

func TestWindow(t *testing.T) {
	cfg := Default()
	cfg.Run.Start, cfg.Run.End = "2024-01-02", "2024-01-05"

	start, end, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.After(time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)))
	assert.True(t, end.Before(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad start", func(c *Config) { c.Run.Start = "01/02/2024" }},
		{"end before start", func(c *Config) { c.Run.Start, c.Run.End = "2024-02-01", "2024-01-01" }},
		{"negative workers", func(c *Config) { c.Run.PrepWorkers = -1 }},
		{"unknown source", func(c *Config) { c.Data.Source = "yahoo" }},
		{"csv without dir", func(c *Config) { c.Data.CSVDir = "" }},
		{"postgres without dsn", func(c *Config) { c.Data.Source = SourcePostgres }},
		{"clickhouse without dsn", func(c *Config) { c.Data.Source = SourceClickhouse }},
		{"persist without postgres", func(c *Config) { c.Storage.Persist = true }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestValidate_ComponentConfig(t *testing.T) {
	cfg := Default()
	cfg.Aggregation.SessionOpen = "17:00"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg = Default()
	cfg.Universe.SampleSize = -1
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
}
