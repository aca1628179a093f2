// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package breaker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/altiplano-io/altiplano/internal/config"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
	"github.com/altiplano-io/altiplano/internal/state"
)

// casAttempts bounds read-modify-CAS loops under contention.
const casAttempts = 6

// record is the persisted breaker state. All workers read and CAS the
// same record, so transitions are functions of recorded failures and time
// only — no per-process hidden state.
type record struct {
	State       models.BreakerState `json:"state"`
	Failures    int64               `json:"failures"`
	LastFailure int64               `json:"last_failure_unix,omitempty"`
	OpenedAt    int64               `json:"opened_at_unix,omitempty"`
}

func (r record) encode() []byte {
	b, _ := json.Marshal(r)
	return b
}

func decodeRecord(b []byte) record {
	var r record
	if err := json.Unmarshal(b, &r); err != nil || r.State == "" {
		return record{State: models.BreakerClosed}
	}
	return r
}

// SharedBreaker implements Breaker on the shared state store.
type SharedBreaker struct {
	settings Settings
	store    state.Store
	policy   config.DegradedPolicy
	fallback *LocalBreaker

	// degraded flags an ongoing store outage so the policy engagement
	// is logged once per outage, not once per request.
	degraded atomic.Bool

	now func() time.Time
}

// NewShared creates a breaker persisting its state under
// "breaker:<source>". fallback may be nil with the fail_closed policy.
func NewShared(settings Settings, store state.Store, policy config.DegradedPolicy, fallback *LocalBreaker) *SharedBreaker {
	metrics.BreakerState.WithLabelValues(settings.Source).Set(0)
	return &SharedBreaker{
		settings: settings,
		store:    store,
		policy:   policy,
		fallback: fallback,
		now:      time.Now,
	}
}

// SetClock overrides the transition clock. Tests only.
func (b *SharedBreaker) SetClock(now func() time.Time) {
	b.now = now
}

// Name implements Breaker.
func (b *SharedBreaker) Name() string { return b.settings.Source }

func (b *SharedBreaker) key() string { return "breaker:" + b.settings.Source }

// recordTTL keeps stale breaker records from outliving relevance: well
// past the recovery timeout the record may simply expire back to closed.
func (b *SharedBreaker) recordTTL() time.Duration {
	return 10 * b.settings.RecoveryTimeout
}

// Allow implements Breaker.
func (b *SharedBreaker) Allow(ctx context.Context) (Done, error) {
	raw, ok, err := b.store.Get(ctx, b.key())
	if err != nil {
		return b.degrade(ctx, err)
	}
	b.recovered()

	rec := record{State: models.BreakerClosed}
	if ok {
		rec = decodeRecord(raw)
	}

	switch rec.State {
	case models.BreakerClosed:
		return b.done(), nil

	case models.BreakerHalfOpen:
		// A probe is already in flight somewhere.
		return nil, ErrOpen

	case models.BreakerOpen:
		if b.now().Sub(time.Unix(rec.OpenedAt, 0)) < b.settings.RecoveryTimeout {
			return nil, ErrOpen
		}
		// Recovery timeout elapsed: claim the single probe slot. The
		// CAS guarantees one winner across all workers.
		next := rec
		next.State = models.BreakerHalfOpen
		swapped, err := b.store.CompareAndSwap(ctx, b.key(), raw, next.encode(), b.recordTTL())
		if err != nil {
			return b.degrade(ctx, err)
		}
		if !swapped {
			return nil, ErrOpen
		}
		b.transitioned(models.BreakerOpen, models.BreakerHalfOpen)
		return b.done(), nil

	default:
		return b.done(), nil
	}
}

// done builds the outcome callback for an admitted call.
func (b *SharedBreaker) done() Done {
	return func(ctx context.Context, outcome Outcome) {
		switch outcome {
		case Success:
			b.success(ctx)
		case Failure:
			b.failure(ctx)
		case Skipped:
			b.release(ctx)
		}
	}
}

// release returns an admitted slot without recording an outcome. A
// claimed half-open probe reverts to open with its original OpenedAt, so
// the next Allow may claim the slot again immediately; any other state is
// untouched.
func (b *SharedBreaker) release(ctx context.Context) {
	for i := 0; i < casAttempts; i++ {
		raw, ok, err := b.store.Get(ctx, b.key())
		if err != nil {
			b.degradeReport(ctx, err)
			return
		}
		if !ok {
			return
		}
		rec := decodeRecord(raw)
		if rec.State != models.BreakerHalfOpen {
			return
		}
		next := rec
		next.State = models.BreakerOpen
		swapped, err := b.store.CompareAndSwap(ctx, b.key(), raw, next.encode(), b.recordTTL())
		if err != nil {
			b.degradeReport(ctx, err)
			return
		}
		if swapped {
			b.transitioned(models.BreakerHalfOpen, models.BreakerOpen)
			return
		}
	}
}

// success closes the circuit and resets the failure count.
func (b *SharedBreaker) success(ctx context.Context) {
	for i := 0; i < casAttempts; i++ {
		raw, ok, err := b.store.Get(ctx, b.key())
		if err != nil {
			b.degradeReport(ctx, err)
			b.fallbackDone(ctx, Success)
			return
		}
		if !ok {
			return // already closed by expiry
		}
		rec := decodeRecord(raw)
		if rec.State == models.BreakerClosed && rec.Failures == 0 {
			return
		}
		next := record{State: models.BreakerClosed}
		swapped, err := b.store.CompareAndSwap(ctx, b.key(), raw, next.encode(), b.recordTTL())
		if err != nil {
			b.degradeReport(ctx, err)
			return
		}
		if swapped {
			if rec.State != models.BreakerClosed {
				b.transitioned(rec.State, models.BreakerClosed)
			}
			return
		}
	}
}

// failure counts a failure and trips the circuit at the threshold. A
// failed half-open probe reopens immediately and restarts the timeout.
func (b *SharedBreaker) failure(ctx context.Context) {
	now := b.now()
	for i := 0; i < casAttempts; i++ {
		raw, ok, err := b.store.Get(ctx, b.key())
		if err != nil {
			b.degradeReport(ctx, err)
			b.fallbackDone(ctx, Failure)
			return
		}

		var old []byte
		rec := record{State: models.BreakerClosed}
		if ok {
			old = raw
			rec = decodeRecord(raw)
		}

		next := rec
		next.Failures++
		next.LastFailure = now.Unix()
		from := rec.State

		switch rec.State {
		case models.BreakerHalfOpen:
			next.State = models.BreakerOpen
			next.OpenedAt = now.Unix()
		case models.BreakerClosed:
			if next.Failures >= b.settings.FailureThreshold {
				next.State = models.BreakerOpen
				next.OpenedAt = now.Unix()
			}
		}

		swapped, err := b.store.CompareAndSwap(ctx, b.key(), old, next.encode(), b.recordTTL())
		if err != nil {
			b.degradeReport(ctx, err)
			return
		}
		if swapped {
			if next.State != from {
				b.transitioned(from, next.State)
				logging.Warn().
					Str("source", b.settings.Source).
					Int64("failures", next.Failures).
					Msg("circuit breaker opened")
			}
			return
		}
	}
}

// Status implements Breaker.
func (b *SharedBreaker) Status(ctx context.Context) models.BreakerStatus {
	st := models.BreakerStatus{
		SourceName:       b.settings.Source,
		State:            models.BreakerClosed,
		FailureThreshold: b.settings.FailureThreshold,
		RecoveryTimeout:  b.settings.RecoveryTimeout.String(),
	}
	raw, ok, err := b.store.Get(ctx, b.key())
	if err != nil || !ok {
		return st
	}
	rec := decodeRecord(raw)
	st.State = rec.State
	st.FailureCount = rec.Failures
	if rec.LastFailure > 0 {
		st.LastFailureTime = time.Unix(rec.LastFailure, 0).UTC()
	}
	return st
}

// degrade applies the configured policy to a store outage during Allow.
func (b *SharedBreaker) degrade(ctx context.Context, err error) (Done, error) {
	b.degradeReport(ctx, err)
	if b.policy == config.DegradeFailClosed || b.fallback == nil {
		return nil, ErrOpen
	}
	return b.fallback.Allow(ctx)
}

// degradeReport logs the policy engagement once per outage.
func (b *SharedBreaker) degradeReport(_ context.Context, err error) {
	if !b.degraded.Swap(true) {
		logging.Error().
			Str("source", b.settings.Source).
			Str("policy", string(b.policy)).
			Err(err).
			Msg("state store unavailable, degraded breaker policy engaged")
	}
}

// recovered clears the outage flag after a successful store operation.
func (b *SharedBreaker) recovered() {
	if b.degraded.Swap(false) {
		logging.Info().
			Str("source", b.settings.Source).
			Msg("state store recovered, shared breaker state resumed")
	}
}

// fallbackDone forwards an outcome to the local fallback while degraded,
// so its view of the source stays warm.
func (b *SharedBreaker) fallbackDone(ctx context.Context, outcome Outcome) {
	if b.policy != config.DegradeBestEffort || b.fallback == nil {
		return
	}
	if done, err := b.fallback.Allow(ctx); err == nil {
		done(ctx, outcome)
	}
}

func (b *SharedBreaker) transitioned(from, to models.BreakerState) {
	metrics.BreakerState.WithLabelValues(b.settings.Source).Set(metrics.BreakerStateValue(string(to)))
	metrics.BreakerTransitions.WithLabelValues(b.settings.Source, string(from), string(to)).Inc()
	logging.Info().
		Str("source", b.settings.Source).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("circuit breaker state transition")
}

var _ Breaker = (*SharedBreaker)(nil)
