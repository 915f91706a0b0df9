// Package config holds pipeline configuration with YAML loading and
// defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"superpose/internal/evaluate"
	"superpose/internal/fitness"
)

// Config is the full pipeline configuration.
type Config struct {
	// Seed drives every stochastic decision. The same seed, snapshot, and
	// directives reproduce a round exactly.
	Seed int64 `yaml:"seed"`

	// Evaluation sizes the worker pool and sets baseline ranges.
	Evaluation evaluate.Config `yaml:"evaluation"`

	// EvalTimeout bounds one evaluation batch, e.g. "30s". Empty means no
	// deadline.
	EvalTimeout string `yaml:"eval_timeout"`

	// Criteria are the default selection weights; callers may override per
	// round.
	Criteria fitness.Criteria `yaml:"criteria"`

	// Ledger selects the batch record backend.
	Ledger LedgerConfig `yaml:"ledger"`
}

// LedgerConfig selects and locates the ledger backend.
type LedgerConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path"`    // sqlite database path
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Seed:        time.Now().UnixNano(),
		Evaluation:  evaluate.DefaultConfig(),
		EvalTimeout: "30s",
		Criteria:    fitness.DefaultCriteria(),
		Ledger:      LedgerConfig{Backend: "memory"},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c Config) Validate() error {
	if c.Evaluation.Workers < 0 {
		return fmt.Errorf("evaluation.workers must be >= 0, got %d", c.Evaluation.Workers)
	}
	switch c.Ledger.Backend {
	case "", "memory":
	case "sqlite":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// Timeout parses EvalTimeout; zero means no deadline.
func (c Config) Timeout() (time.Duration, error) {
	if c.EvalTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.EvalTimeout)
	if err != nil {
		return 0, fmt.Errorf("bad eval_timeout %q: %w", c.EvalTimeout, err)
	}
	return d, nil
}
