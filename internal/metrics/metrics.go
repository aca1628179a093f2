// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package metrics registers the Prometheus instruments for the resolution
// pipeline: resolver latency and candidate counts, fallback stage outcomes,
// circuit breaker states and usage limiter decisions, catalog sizes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolver metrics

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altiplano_resolve_duration_seconds",
			Help:    "Duration of single-point elevation resolution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // hit, miss, invalid
	)

	ResolveCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "altiplano_resolve_candidates",
			Help:    "Number of candidate collections considered per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	ExtractionMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altiplano_extraction_misses_total",
			Help: "Candidates skipped during extraction",
		},
		[]string{"reason"}, // no_file, not_covered, io_error
	)

	// Fallback chain metrics

	StageAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altiplano_stage_attempts_total",
			Help: "Fallback stage attempts by outcome",
		},
		[]string{"stage", "outcome"}, // hit, miss, error, timeout, circuit_open, rate_limited
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altiplano_stage_duration_seconds",
			Help:    "Per-stage execution time in the fallback chain",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Circuit breaker metrics

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "altiplano_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"source"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altiplano_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"source", "from", "to"},
	)

	// Usage limiter metrics

	UsageDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altiplano_usage_decisions_total",
			Help: "Usage limiter decisions per source",
		},
		[]string{"source", "decision"}, // allowed, denied_daily, denied_burst, degraded
	)

	// Catalog metrics

	CatalogCollections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altiplano_catalog_collections",
			Help: "Collections in the active catalog snapshot",
		},
	)

	CatalogFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altiplano_catalog_files",
			Help: "File entries in the active catalog snapshot",
		},
	)

	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altiplano_catalog_reloads_total",
			Help: "Catalog reload attempts",
		},
		[]string{"outcome"}, // success, failure
	)

	TileIndexCells = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "altiplano_tile_index_cells",
			Help: "Grid cells in the tiling index per collection",
		},
		[]string{"collection"},
	)
)

// BreakerStateValue maps a breaker state name to its gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}
