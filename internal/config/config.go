// Package config exposes the YAML run file of the backtest commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"swing-backtest-lab/internal/domain"
)

// Data sources.
const (
	SourceCSV        = "csv"
	SourcePostgres   = "postgres"
	SourceClickhouse = "clickhouse"
)

// Environment overrides for storage DSNs.
const (
	EnvPostgresDSN   = "BACKTEST_POSTGRES_DSN"
	EnvClickhouseDSN = "BACKTEST_CLICKHOUSE_DSN"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config file")

// Run is the backtest window and output settings.
type Run struct {
	Start       string `yaml:"start"` // YYYY-MM-DD
	End         string `yaml:"end"`   // YYYY-MM-DD, inclusive
	OutDir      string `yaml:"out_dir"`
	PrepWorkers int    `yaml:"prep_workers"`
}

// Data selects where bars, events and instruments come from.
type Data struct {
	Source      string   `yaml:"source"`
	CSVDir      string   `yaml:"csv_dir"`
	TickersFile string   `yaml:"tickers_file"`
	Instruments []string `yaml:"instruments"`
}

// Storage holds database connections and persistence switches.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Persist       bool   `yaml:"persist"`
}

// Log configures the diagnostics logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Config collects every section of the run file.
type Config struct {
	Run      Run                   `yaml:"run"`
	Data     Data                  `yaml:"data"`
	Storage  Storage               `yaml:"storage"`
	Log      Log                   `yaml:"log"`
	Metrics  Metrics               `yaml:"metrics"`
	Universe domain.UniverseConfig `yaml:"universe"`

	domain.RunParams `yaml:",inline"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Run: Run{
			Start:       "2023-01-01",
			End:         "2024-12-31",
			OutDir:      "reports",
			PrepWorkers: 4,
		},
		Data: Data{
			Source: SourceCSV,
			CSVDir: "data",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Namespace: "swing_backtest",
		},
		Universe:  domain.DefaultUniverseConfig(),
		RunParams: domain.DefaultRunParams(),
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Save persists cfg to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides storage DSNs from the environment when set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvPostgresDSN)); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(getenv(EnvClickhouseDSN)); v != "" {
		c.Storage.ClickhouseDSN = v
	}
}

// Window parses the run window. End is extended to the last instant of its
// day so that bars of the end date are included.
func (c *Config) Window() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, c.Run.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: run.start: %v", ErrInvalid, err)
	}
	end, err = time.Parse(time.DateOnly, c.Run.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: run.end: %v", ErrInvalid, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: run.end %s before run.start %s", ErrInvalid, c.Run.End, c.Run.Start)
	}
	return start, end.Add(24*time.Hour - time.Millisecond), nil
}

// Validate checks the file sections, then every component configuration.
func (c *Config) Validate() error {
	if _, _, err := c.Window(); err != nil {
		return err
	}
	if c.Run.PrepWorkers < 0 {
		return fmt.Errorf("%w: run.prep_workers must be >= 0", ErrInvalid)
	}

	switch c.Data.Source {
	case SourceCSV:
		if c.Data.CSVDir == "" {
			return fmt.Errorf("%w: data.csv_dir is required for source csv", ErrInvalid)
		}
	case SourcePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for source postgres", ErrInvalid)
		}
	case SourceClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("%w: storage.clickhouse_dsn is required for source clickhouse", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: data.source %q (want csv, postgres or clickhouse)", ErrInvalid, c.Data.Source)
	}

	if c.Storage.Persist && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: storage.persist requires storage.postgres_dsn", ErrInvalid)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format %q (want json or console)", ErrInvalid, c.Log.Format)
	}

	if err := c.Universe.Validate(); err != nil {
		return err
	}
	return c.RunParams.Validate()
}
