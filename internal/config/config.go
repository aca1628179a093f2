// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/models"
)

// Config is the root configuration for the service.
type Config struct {
	Server  ServerConfig   `koanf:"server"`
	Logging logging.Config `koanf:"logging"`
	Catalog CatalogConfig  `koanf:"catalog"`
	Scoring ScoringConfig  `koanf:"scoring"`
	State   StateConfig    `koanf:"state"`
	Sources []SourceConfig `koanf:"sources"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitPerMin int           `koanf:"rate_limit_per_min" validate:"gt=0"`
}

// CatalogConfig configures catalog loading and the tiling index.
type CatalogConfig struct {
	// Path is the catalog JSON file produced by the upstream indexer.
	Path string `koanf:"path"`

	// TilingThreshold is the file count at which a collection gets a
	// tiling index instead of linear file scans.
	TilingThreshold int `koanf:"tiling_threshold" validate:"gt=0"`

	// CellSizeDegrees is the tiling grid cell size (~0.02 deg = ~2 km).
	CellSizeDegrees float64 `koanf:"cell_size_degrees" validate:"gt=0"`

	// ReloadInterval is how often the reload service re-reads the
	// catalog. Zero disables periodic reload; the HTTP trigger remains.
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

// ScoringConfig carries the score weights and the local stage budget.
type ScoringConfig struct {
	Weights      models.ScoreWeights `koanf:"weights"`
	LocalTimeout time.Duration       `koanf:"local_timeout"`
}

// DegradedPolicy selects the behavior when the shared state store is
// unavailable. Exactly one policy is in force per deployment; it is logged
// the first time it engages, never applied silently.
type DegradedPolicy string

const (
	// DegradeFailClosed rejects remote calls while the store is down.
	DegradeFailClosed DegradedPolicy = "fail_closed"

	// DegradeBestEffort falls back to per-process counters.
	DegradeBestEffort DegradedPolicy = "best_effort"
)

// StateConfig configures the shared atomic state store backing circuit
// breakers and usage counters.
type StateConfig struct {
	// Backend is badger (shared, durable) or memory (tests, dev).
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Dir is the badger data directory.
	Dir string `koanf:"dir"`

	// DegradedPolicy applies when the backend errors at runtime.
	DegradedPolicy DegradedPolicy `koanf:"degraded_policy" validate:"oneof=fail_closed best_effort"`

	// GCInterval is how often badger value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// SourceConfig describes one external elevation API tier. Sources are
// tried in list order after the local resolver; Timeout should increase
// down the list (fail fast first, be patient last).
type SourceConfig struct {
	Name             string        `koanf:"name" validate:"required"`
	URL              string        `koanf:"url" validate:"required,url"`
	Format           string        `koanf:"format" validate:"oneof=open_elevation opentopodata"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	DailyLimit       int64         `koanf:"daily_limit" validate:"gt=0"`
	BurstPerSecond   float64       `koanf:"burst_per_second" validate:"gt=0"`
	FailureThreshold int64         `koanf:"failure_threshold" validate:"gt=0"`
	RecoveryTimeout  time.Duration `koanf:"recovery_timeout" validate:"gt=0"`
}

// defaultConfig returns the built-in defaults. They are layered under the
// optional config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitPerMin: 300,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			Path:            "/data/catalog.json",
			TilingThreshold: 500,
			CellSizeDegrees: 0.02,
			ReloadInterval:  0,
		},
		Scoring: ScoringConfig{
			Weights:      models.DefaultScoreWeights(),
			LocalTimeout: 800 * time.Millisecond,
		},
		State: StateConfig{
			Backend:        "badger",
			Dir:            "/data/state",
			DegradedPolicy: DegradeBestEffort,
			GCInterval:     10 * time.Minute,
		},
		Sources: []SourceConfig{
			{
				Name:             "opentopodata",
				URL:              "https://api.opentopodata.org/v1/srtm90m",
				Format:           "opentopodata",
				Timeout:          3 * time.Second,
				DailyLimit:       1000,
				BurstPerSecond:   1,
				FailureThreshold: 5,
				RecoveryTimeout:  60 * time.Second,
			},
			{
				Name:             "open-elevation",
				URL:              "https://api.open-elevation.com/api/v1/lookup",
				Format:           "open_elevation",
				Timeout:          8 * time.Second,
				DailyLimit:       5000,
				BurstPerSecond:   2,
				FailureThreshold: 5,
				RecoveryTimeout:  120 * time.Second,
			},
		},
	}
}

var validate = validator.New()

// Validate checks structural constraints the koanf layers cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring weights: %w", err)
	}
	if c.State.Backend == "badger" && c.State.Dir == "" {
		return fmt.Errorf("state.dir is required with the badger backend")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
