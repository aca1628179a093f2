// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package breaker gates calls to external elevation sources.
//
// The primary implementation keeps its state machine in the shared state
// store, so every worker drawing on that store sees the same open/closed
// decision and a known-down source is probed once, not once per worker.
// When the store is unreachable the configured degraded policy applies:
// fail closed, or fall back to a store-free gobreaker instance.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/altiplano-io/altiplano/internal/models"
)

// ErrOpen reports that the circuit is open and the remote call must be
// skipped without going to the network.
var ErrOpen = errors.New("circuit breaker open")

// Outcome is what an admitted call reports back through Done.
type Outcome int

const (
	// Success: the source answered.
	Success Outcome = iota

	// Failure: the call failed or timed out.
	Failure

	// Skipped: the admitted call never reached the source (e.g. the
	// usage quota denied it). Says nothing about source health; a
	// claimed half-open probe slot is returned, not consumed.
	Skipped
)

// Done reports the outcome of a call admitted by Allow.
type Done func(ctx context.Context, outcome Outcome)

// Breaker is consulted before every remote source call.
type Breaker interface {
	// Name identifies the guarded source.
	Name() string

	// Allow returns a Done callback when the call may proceed, or
	// ErrOpen when it must be skipped. Exactly one admitted call exists
	// in the half-open state; its outcome decides the next state.
	Allow(ctx context.Context) (Done, error)

	// Status snapshots the breaker for diagnostics.
	Status(ctx context.Context) models.BreakerStatus
}

// Settings configures one source's breaker.
type Settings struct {
	Source           string
	FailureThreshold int64
	RecoveryTimeout  time.Duration
}
