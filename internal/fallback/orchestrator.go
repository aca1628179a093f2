// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package fallback sequences the elevation sources: the local resolver
// first, then the remote tiers in configured order.
//
// Stages run strictly sequentially — no speculative fan-out — so usage
// counters and attempted-source reporting stay deterministic. Each stage
// gets its own timeout budget, increasing down the chain: the chain fails
// fast on the cheap tiers and is patient only with the last resort, which
// bounds worst-case latency by the sum of the budgets rather than by the
// slowest source.
//
// Only coordinate validation errors reach the caller. Every other
// condition — open circuits, exhausted quotas, timeouts, sources with no
// data — degrades to a structured null-elevation result.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altiplano-io/altiplano/internal/breaker"
	"github.com/altiplano-io/altiplano/internal/limiter"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
)

// LocalStageName is the well-known name of the local resolver stage.
const LocalStageName = "local"

// errStageMiss signals "this stage has no data, try the next one".
var errStageMiss = errors.New("stage miss")

// StageResult is a successful stage outcome.
type StageResult struct {
	Elevation        float64
	SourceUsed       string
	ResolutionMeters float64
}

// Stage is one tier of the chain. Execute returns errStageMiss-wrapped
// errors for routine no-data outcomes and real errors for failures; both
// advance the chain, but only failures feed the stage's circuit breaker.
type Stage interface {
	Name() string
	Timeout() time.Duration
	Execute(ctx context.Context, lat, lon float64) (*StageResult, error)
}

// Orchestrator walks the chain for each query.
type Orchestrator struct {
	stages []Stage
}

// New creates an orchestrator over the given stages, tried in order.
func New(stages ...Stage) *Orchestrator {
	return &Orchestrator{stages: stages}
}

// Sources lists the stage names in chain order.
func (o *Orchestrator) Sources() []string {
	out := make([]string, len(o.stages))
	for i, s := range o.stages {
		out[i] = s.Name()
	}
	return out
}

// BreakerStatuses snapshots every remote stage's circuit breaker, in
// chain order.
func (o *Orchestrator) BreakerStatuses(ctx context.Context) []models.BreakerStatus {
	out := make([]models.BreakerStatus, 0, len(o.stages))
	for _, s := range o.stages {
		if rs, ok := s.(*RemoteStage); ok {
			out = append(out, rs.Breaker().Status(ctx))
		}
	}
	return out
}

// Resolve runs the chain. The returned error is non-nil only for
// malformed coordinates.
func (o *Orchestrator) Resolve(ctx context.Context, lat, lon float64) (*models.ElevationResult, error) {
	if err := models.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}

	attempted := make([]string, 0, len(o.stages))
	var lastMsg string

	for _, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			lastMsg = "request deadline exhausted"
			break
		}
		attempted = append(attempted, stage.Name())

		res, err := o.runStage(ctx, stage, lat, lon)
		if err == nil {
			return &models.ElevationResult{
				Elevation:        &res.Elevation,
				SourceUsed:       res.SourceUsed,
				ResolutionMeters: res.ResolutionMeters,
				AttemptedSources: attempted,
			}, nil
		}
		lastMsg = err.Error()
	}

	logging.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Strs("attempted", attempted).
		Msg("all sources exhausted")

	return &models.ElevationResult{
		Elevation:        nil,
		SourceUsed:       "none",
		AttemptedSources: attempted,
		Message:          "no elevation data available: " + lastMsg,
	}, nil
}

// runStage executes one stage under its own timeout budget.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, lat, lon float64) (*StageResult, error) {
	start := time.Now()
	stageCtx, cancel := context.WithTimeout(ctx, stage.Timeout())
	defer cancel()

	res, err := stage.Execute(stageCtx, lat, lon)
	metrics.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.StageAttempts.WithLabelValues(stage.Name(), "hit").Inc()
		return res, nil
	case errors.Is(err, context.DeadlineExceeded) && stageCtx.Err() != nil:
		metrics.StageAttempts.WithLabelValues(stage.Name(), "timeout").Inc()
		return nil, fmt.Errorf("%s timed out after %s", stage.Name(), stage.Timeout())
	case errors.Is(err, breaker.ErrOpen):
		metrics.StageAttempts.WithLabelValues(stage.Name(), "circuit_open").Inc()
		return nil, err
	case errors.Is(err, limiter.ErrLimitExceeded):
		metrics.StageAttempts.WithLabelValues(stage.Name(), "rate_limited").Inc()
		return nil, err
	case errors.Is(err, errStageMiss):
		metrics.StageAttempts.WithLabelValues(stage.Name(), "miss").Inc()
		return nil, err
	default:
		metrics.StageAttempts.WithLabelValues(stage.Name(), "error").Inc()
		logging.Warn().Str("stage", stage.Name()).Err(err).Msg("stage failed, advancing")
		return nil, err
	}
}
