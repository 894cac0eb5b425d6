// Package config loads branchlens settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	gitbackend "github.com/thiagokokada/branchlens/internal/git/backend"
)

const Prefix = "branchlens"

// Config holds the settings. Every field can be set through a
// BRANCHLENS_* variable, e.g. BRANCHLENS_POLL_TIMEOUT=100ms.
type Config struct {
	Backend      string        `default:"native"`
	PollTimeout  time.Duration `default:"70ms" split_words:"true"`
	RefreshDelay time.Duration `default:"50ms" split_words:"true"`
	WatchDelay   time.Duration `default:"350ms" split_words:"true"`
	Watch        bool          `default:"true"`
	Decorations  bool          `default:"true"`
	Diff         bool          `default:"false"`
	MetricsAddr  string        `default:"" split_words:"true"`
	Verbose      bool          `default:"false"`
}

// Process reads the environment without validating, so command line flags
// can still replace bad values.
func Process() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// Load processes the environment and validates the result.
func Load() (Config, error) {
	cfg, err := Process()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := gitbackend.ParseKind(c.Backend); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll timeout must be positive, got %s", c.PollTimeout))
	}
	if c.RefreshDelay < 0 {
		errs = append(errs, fmt.Errorf("refresh delay must not be negative, got %s", c.RefreshDelay))
	}
	if c.WatchDelay < 0 {
		errs = append(errs, fmt.Errorf("watch delay must not be negative, got %s", c.WatchDelay))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Kind returns the parsed backend. It assumes Validate passed.
func (c Config) Kind() gitbackend.Kind {
	kind, _ := gitbackend.ParseKind(c.Backend)
	return kind
}
