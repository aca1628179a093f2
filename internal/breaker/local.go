// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package breaker

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/altiplano-io/altiplano/internal/models"
)

// LocalBreaker implements Breaker on a process-local gobreaker instance.
// It is the best-effort degraded-mode stand-in when the shared store is
// down, and the primary breaker in development setups. Its state lives
// only in this process; other processes hitting the same source would
// re-trip the outage independently.
type LocalBreaker struct {
	settings Settings
	cb       *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewLocal creates a process-local breaker with the same threshold and
// recovery semantics as the shared one.
func NewLocal(settings Settings) *LocalBreaker {
	cb := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        settings.Source,
		MaxRequests: 1, // single probe in half-open, matching the shared breaker
		Timeout:     settings.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int64(counts.ConsecutiveFailures) >= settings.FailureThreshold
		},
	})
	return &LocalBreaker{settings: settings, cb: cb}
}

// Name implements Breaker.
func (b *LocalBreaker) Name() string { return b.settings.Source }

// Allow implements Breaker.
func (b *LocalBreaker) Allow(_ context.Context) (Done, error) {
	done, err := b.cb.Allow()
	if err != nil {
		// ErrOpenState and ErrTooManyRequests both mean "skip".
		return nil, ErrOpen
	}
	return func(_ context.Context, outcome Outcome) {
		switch outcome {
		case Success:
			done(true)
		case Failure:
			done(false)
		case Skipped:
			// gobreaker has no neutral release. Report by state: a
			// half-open slot must not be closed by a call that never
			// ran, so fail it (reopen); in the closed state a success
			// is the closest to a no-op.
			done(b.cb.State() != gobreaker.StateHalfOpen)
		}
	}, nil
}

// Status implements Breaker.
func (b *LocalBreaker) Status(_ context.Context) models.BreakerStatus {
	st := models.BreakerStatus{
		SourceName:       b.settings.Source,
		FailureThreshold: b.settings.FailureThreshold,
		RecoveryTimeout:  b.settings.RecoveryTimeout.String(),
		FailureCount:     int64(b.cb.Counts().ConsecutiveFailures),
	}
	switch b.cb.State() {
	case gobreaker.StateOpen:
		st.State = models.BreakerOpen
	case gobreaker.StateHalfOpen:
		st.State = models.BreakerHalfOpen
	default:
		st.State = models.BreakerClosed
	}
	return st
}

var _ Breaker = (*LocalBreaker)(nil)
