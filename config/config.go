// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the channel's tunables: dispatcher concurrency,
// transport timeouts and retry caps, close drain timeout, and scheduler
// strategy selection. Modeled on the teacher's config.Parameters /
// config.DefaultParams / parameter-validation style (config/config.go),
// with an entirely different field set (channel tunables instead of
// consensus K/Alpha/Beta).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names a scheduler strategy (spec.md §4.5.1).
type Strategy string

const (
	Conservative Strategy = "conservative"
	Default      Strategy = "default"
	Aggressive   Strategy = "aggressive"
	Adaptive     Strategy = "adaptive"
)

var (
	ErrInvalidConcurrency    = errors.New("dispatcher concurrency must be >= 1")
	ErrInvalidRetryAttempts  = errors.New("transport retry attempts must be >= 1")
	ErrInvalidFetchTimeout   = errors.New("transport fetch timeout must be positive")
	ErrInvalidDrainTimeout   = errors.New("close drain timeout must be positive")
	ErrInvalidStrategy       = errors.New("unknown scheduler strategy")
	ErrInvalidAdaptiveWindow = errors.New("adaptive tuning window must be >= 1")
)

// Config holds every tunable the channel and its collaborators read at
// construction time.
type Config struct {
	// DispatcherConcurrency bounds how many node-download tasks run at
	// once (spec.md §5, "bounded pool of worker tasks").
	DispatcherConcurrency int `yaml:"dispatcherConcurrency"`

	// TransportFetchTimeout bounds a single task's fetch call, retries
	// included (spec.md §5, default 60s).
	TransportFetchTimeout time.Duration `yaml:"transportFetchTimeout"`
	// TransportRetryAttempts bounds retried fetches on transport errors
	// (spec.md §4.6.3, default 3).
	TransportRetryAttempts int `yaml:"transportRetryAttempts"`

	// CloseDrainTimeout bounds how long close() waits for outstanding
	// tasks before forcibly completing pending futures with
	// ErrChannelClosed (spec.md §5, default 30s).
	CloseDrainTimeout time.Duration `yaml:"closeDrainTimeout"`

	// Strategy selects the scheduler strategy family (spec.md §4.5.1).
	Strategy Strategy `yaml:"strategy"`

	// AdaptiveWindow is the number of recent read requests the adaptive
	// strategy observes when interpolating between Conservative and
	// Aggressive (spec.md §4.5.1's "dynamic" row).
	AdaptiveWindow int `yaml:"adaptiveWindow"`
	// AdaptiveHysteresis is the minimum change in observed hit-rate
	// required before the adaptive strategy shifts its interpolation,
	// preventing it from oscillating strategy choice every single read.
	AdaptiveHysteresis float64 `yaml:"adaptiveHysteresis"`
}

// LoadFile reads a YAML config file, starting from DefaultConfig so any
// field the file omits keeps its default, then validates the result.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns the channel's default tunables.
func DefaultConfig() Config {
	return Config{
		DispatcherConcurrency:  8,
		TransportFetchTimeout:  60 * time.Second,
		TransportRetryAttempts: 3,
		CloseDrainTimeout:      30 * time.Second,
		Strategy:               Default,
		AdaptiveWindow:         32,
		AdaptiveHysteresis:     0.1,
	}
}

// Validate reports the first invalid field found, wrapped as a sentinel
// Err* value per the teacher's parameter-validation style.
func (c Config) Validate() error {
	if c.DispatcherConcurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.DispatcherConcurrency)
	}
	if c.TransportRetryAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetryAttempts, c.TransportRetryAttempts)
	}
	if c.TransportFetchTimeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidFetchTimeout, c.TransportFetchTimeout)
	}
	if c.CloseDrainTimeout <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDrainTimeout, c.CloseDrainTimeout)
	}
	switch c.Strategy {
	case Conservative, Default, Aggressive, Adaptive:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy)
	}
	if c.Strategy == Adaptive && c.AdaptiveWindow < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidAdaptiveWindow, c.AdaptiveWindow)
	}
	return nil
}
