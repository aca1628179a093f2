// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altiplano-io/altiplano/internal/breaker"
	"github.com/altiplano-io/altiplano/internal/catalog"
	"github.com/altiplano-io/altiplano/internal/limiter"
	"github.com/altiplano-io/altiplano/internal/resolver"
	"github.com/altiplano-io/altiplano/internal/source"
)

// LocalStage resolves against the on-disk catalog. It always runs first
// and never consumes quota or breaker state.
type LocalStage struct {
	resolver *resolver.Resolver
	timeout  time.Duration
}

// NewLocalStage wraps the local resolver as the first chain tier.
func NewLocalStage(r *resolver.Resolver, timeout time.Duration) *LocalStage {
	return &LocalStage{resolver: r, timeout: timeout}
}

func (s *LocalStage) Name() string { return LocalStageName }

func (s *LocalStage) Timeout() time.Duration { return s.timeout }

// Execute resolves locally. Coverage gaps and candidate exhaustion are
// misses; only unexpected resolver errors surface as failures.
func (s *LocalStage) Execute(ctx context.Context, lat, lon float64) (*StageResult, error) {
	res, err := s.resolver.Resolve(ctx, lat, lon)
	switch {
	case err == nil:
		return &StageResult{
			Elevation:        res.Elevation,
			SourceUsed:       LocalStageName + ":" + res.CollectionID,
			ResolutionMeters: res.ResolutionMeters,
		}, nil
	case errors.Is(err, catalog.ErrNoCoverage), errors.Is(err, resolver.ErrExhausted):
		return nil, fmt.Errorf("%w: %s", errStageMiss, err)
	default:
		return nil, err
	}
}

// RemoteStage calls an external elevation API behind a circuit breaker
// and a daily usage limiter.
type RemoteStage struct {
	client  source.Client
	brk     breaker.Breaker
	limiter *limiter.UsageLimiter
	timeout time.Duration

	// resolutionMeters is the nominal resolution advertised for the
	// remote dataset, carried into results for provenance.
	resolutionMeters float64
}

// NewRemoteStage wraps a source client with its guards. The breaker and
// limiter share one state store, so every worker drawing on that store
// sees the same admission decisions.
func NewRemoteStage(client source.Client, brk breaker.Breaker, lim *limiter.UsageLimiter, timeout time.Duration, resolutionMeters float64) *RemoteStage {
	return &RemoteStage{
		client:           client,
		brk:              brk,
		limiter:          lim,
		timeout:          timeout,
		resolutionMeters: resolutionMeters,
	}
}

func (s *RemoteStage) Name() string { return s.client.Name() }

func (s *RemoteStage) Timeout() time.Duration { return s.timeout }

// Execute checks the breaker, then the quota, then calls the source. The
// quota check comes second so an open circuit never burns daily budget.
// No-data responses count as breaker successes: the source answered.
func (s *RemoteStage) Execute(ctx context.Context, lat, lon float64) (*StageResult, error) {
	done, err := s.brk.Allow(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.TryConsume(ctx); err != nil {
		// Quota denial says nothing about source health; return the
		// admission without recording an outcome.
		done(ctx, breaker.Skipped)
		return nil, err
	}

	elev, err := s.client.Fetch(ctx, lat, lon)
	switch {
	case err == nil:
		done(ctx, breaker.Success)
		return &StageResult{
			Elevation:        elev,
			SourceUsed:       s.client.Name(),
			ResolutionMeters: s.resolutionMeters,
		}, nil
	case errors.Is(err, source.ErrNoData):
		done(ctx, breaker.Success)
		return nil, fmt.Errorf("%w: %s", errStageMiss, err)
	default:
		done(ctx, breaker.Failure)
		return nil, err
	}
}

// Breaker exposes the stage's breaker for diagnostics endpoints.
func (s *RemoteStage) Breaker() breaker.Breaker { return s.brk }
