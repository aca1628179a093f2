// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package models

import (
	"fmt"
	"math"
	"time"
)

// ScoreWeights are the component weights of the total score. They must sum
// to 1.0 (within epsilon); Validate enforces this at config load.
type ScoreWeights struct {
	Resolution float64 `json:"resolution" koanf:"resolution"`
	Temporal   float64 `json:"temporal" koanf:"temporal"`
	Spatial    float64 `json:"spatial" koanf:"spatial"`
	Provider   float64 `json:"provider" koanf:"provider"`
}

// DefaultScoreWeights favor resolution, then recency, then footprint
// tightness, then provider reputation.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Resolution: 0.5, Temporal: 0.3, Spatial: 0.15, Provider: 0.05}
}

// Validate checks the weights sum to 1.0 and each lies in [0, 1].
func (w ScoreWeights) Validate() error {
	for name, v := range map[string]float64{
		"resolution": w.Resolution,
		"temporal":   w.Temporal,
		"spatial":    w.Spatial,
		"provider":   w.Provider,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("score weight %s out of range: %v", name, v)
		}
	}
	sum := w.Resolution + w.Temporal + w.Spatial + w.Provider
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("score weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// ScoreBreakdown holds the per-component scores for one candidate
// collection, each in [0, 1], and their weighted total.
type ScoreBreakdown struct {
	Resolution float64 `json:"resolution"`
	Temporal   float64 `json:"temporal"`
	Spatial    float64 `json:"spatial"`
	Provider   float64 `json:"provider"`
	Total      float64 `json:"total"`
}

// Weighted computes the total from the components and the given weights.
func (s ScoreBreakdown) Weighted(w ScoreWeights) float64 {
	return s.Resolution*w.Resolution + s.Temporal*w.Temporal +
		s.Spatial*w.Spatial + s.Provider*w.Provider
}

// CandidateResult is one ranked (collection, file) pair the resolver is
// prepared to read from.
type CandidateResult struct {
	CollectionID     string         `json:"collection_id"`
	FileRef          string         `json:"file_ref"`
	Score            ScoreBreakdown `json:"score"`
	ResolutionMeters float64        `json:"resolution_meters"`
}

// ElevationResult is the terminal answer for a single-point query.
// Elevation is nil when every source was exhausted; the request still
// succeeds at the transport level.
type ElevationResult struct {
	Elevation        *float64 `json:"elevation_meters"`
	SourceUsed       string   `json:"source_used"`
	ResolutionMeters float64  `json:"resolution_meters,omitempty"`
	AttemptedSources []string `json:"attempted_sources"`
	Message          string   `json:"message,omitempty"`
}

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerStatus is a point-in-time snapshot of one source's circuit
// breaker, exposed for operational visibility.
type BreakerStatus struct {
	SourceName       string       `json:"source_name"`
	State            BreakerState `json:"state"`
	FailureCount     int64        `json:"failure_count"`
	LastFailureTime  time.Time    `json:"last_failure_time,omitzero"`
	FailureThreshold int64        `json:"failure_threshold"`
	RecoveryTimeout  string       `json:"recovery_timeout"`
}
