// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package limiter enforces per-source usage quotas before a remote call
// is made.
//
// Two limits apply per source: a daily quota counted in the shared state
// store (so every worker drawing on that store shares one budget), and a
// short-window
// token bucket guarding the provider's burst constraints. The daily
// counter is keyed by UTC date with a TTL to the period's end, so a new
// period starts atomically at zero — there is no partial reset to race
// against.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/altiplano-io/altiplano/internal/config"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/state"
)

// ErrLimitExceeded reports an exhausted quota; the remote stage is
// skipped without a network call.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// Settings configures one source's limits.
type Settings struct {
	Source         string
	DailyLimit     int64
	BurstPerSecond float64
}

// UsageLimiter guards one remote source.
type UsageLimiter struct {
	settings Settings
	store    state.Store
	policy   config.DegradedPolicy
	burst    *rate.Limiter

	// local backs the best-effort degraded mode; it undercounts when
	// other processes share the quota but keeps this one honest.
	local    atomic.Int64
	degraded atomic.Bool

	now func() time.Time
}

// New creates a limiter for the given source.
func New(settings Settings, store state.Store, policy config.DegradedPolicy) *UsageLimiter {
	burst := rate.NewLimiter(rate.Limit(settings.BurstPerSecond), burstCapacity(settings.BurstPerSecond))
	return &UsageLimiter{
		settings: settings,
		store:    store,
		policy:   policy,
		burst:    burst,
		now:      time.Now,
	}
}

// burstCapacity sizes the token bucket: at least one token, at most one
// second's worth.
func burstCapacity(perSecond float64) int {
	if perSecond < 1 {
		return 1
	}
	return int(perSecond)
}

// SetClock overrides the period clock. Tests only.
func (l *UsageLimiter) SetClock(now func() time.Time) {
	l.now = now
}

// periodKey is the UTC date the consumption counts against.
func (l *UsageLimiter) periodKey(now time.Time) string {
	return fmt.Sprintf("usage:%s:%s", l.settings.Source, now.UTC().Format("2006-01-02"))
}

// periodTTL is the time left until the UTC day rolls over.
func periodTTL(now time.Time) time.Duration {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return midnight.Sub(utc)
}

// TryConsume takes one unit of today's quota and one burst token.
// Returns ErrLimitExceeded when either is exhausted. The quota unit is
// consumed by the atomic increment itself: read-modify-write against the
// counter would lose updates across workers.
func (l *UsageLimiter) TryConsume(ctx context.Context) error {
	if !l.burst.Allow() {
		metrics.UsageDecisions.WithLabelValues(l.settings.Source, "denied_burst").Inc()
		return fmt.Errorf("%w: burst window for %s", ErrLimitExceeded, l.settings.Source)
	}

	now := l.now()
	count, err := l.store.Increment(ctx, l.periodKey(now), periodTTL(now))
	if err != nil {
		return l.degrade(err)
	}
	l.recovered()

	if count > l.settings.DailyLimit {
		metrics.UsageDecisions.WithLabelValues(l.settings.Source, "denied_daily").Inc()
		return fmt.Errorf("%w: daily quota for %s (%d/%d)",
			ErrLimitExceeded, l.settings.Source, count, l.settings.DailyLimit)
	}

	metrics.UsageDecisions.WithLabelValues(l.settings.Source, "allowed").Inc()
	return nil
}

// Usage reports today's consumed count.
func (l *UsageLimiter) Usage(ctx context.Context) (int64, error) {
	now := l.now()
	raw, ok, err := l.store.Get(ctx, l.periodKey(now))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return state.DecodeInt(raw), nil
}

// degrade applies the configured policy to a store outage.
func (l *UsageLimiter) degrade(err error) error {
	if !l.degraded.Swap(true) {
		logging.Error().
			Str("source", l.settings.Source).
			Str("policy", string(l.policy)).
			Err(err).
			Msg("state store unavailable, degraded limiter policy engaged")
	}
	metrics.UsageDecisions.WithLabelValues(l.settings.Source, "degraded").Inc()

	if l.policy == config.DegradeFailClosed {
		return fmt.Errorf("%w: state store down, failing closed for %s", ErrLimitExceeded, l.settings.Source)
	}

	// Best effort: an in-process counter. Undercounts when other
	// processes share the quota, but still bounds this one.
	if l.local.Add(1) > l.settings.DailyLimit {
		return fmt.Errorf("%w: best-effort quota for %s", ErrLimitExceeded, l.settings.Source)
	}
	return nil
}

// recovered clears the outage flag after a successful store operation.
func (l *UsageLimiter) recovered() {
	if l.degraded.Swap(false) {
		l.local.Store(0)
		logging.Info().
			Str("source", l.settings.Source).
			Msg("state store recovered, shared usage counting resumed")
	}
}
