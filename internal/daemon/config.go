// Package daemon holds the gateway daemon's configuration.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	API       APIConfig       `toml:"api"`
	Selection SelectionConfig `toml:"selection"`
	Decay     DecayConfig     `toml:"decay"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SelectionConfig configures the dispatch decision.
type SelectionConfig struct {
	// Limit is the maximum number of providers selected per query.
	Limit int `toml:"limit"`
	// BudgetUSD is the query budget in USD. It is validated on load, but the
	// daemon does not read it: the API takes fees as budget fractions.
	BudgetUSD float64 `toml:"budget_usd"`
}

// DecayConfig configures the tracker decay loop.
type DecayConfig struct {
	// Interval between decay ticks. The tracker decay rates are calibrated
	// to 1s; change this only to speed up tests.
	Interval Duration `toml:"interval"`
}

// Duration decodes TOML strings like "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// StoreConfig configures the sqlite audit trail.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, text
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7780,
		},
		Selection: SelectionConfig{
			Limit:     3,
			BudgetUSD: 20e-6,
		},
		Decay: DecayConfig{
			Interval: Duration{time.Second},
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    defaultStorePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error:
// the defaults are returned unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath is where the daemon looks when no --config flag is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".dispatch", "config.toml")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "dispatch.db"
	}
	return filepath.Join(home, ".dispatch", "dispatch.db")
}

func (c Config) validate() error {
	if c.Selection.Limit < 1 {
		return fmt.Errorf("selection.limit must be >= 1, got %d", c.Selection.Limit)
	}
	if c.Selection.BudgetUSD <= 0 {
		return fmt.Errorf("selection.budget_usd must be positive, got %g", c.Selection.BudgetUSD)
	}
	if c.Decay.Interval.Duration <= 0 {
		return fmt.Errorf("decay.interval must be positive, got %s", c.Decay.Interval)
	}
	return nil
}
