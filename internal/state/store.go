// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package state provides the atomic key-value store backing circuit
// breaker state and usage counters.
//
// The service handles queries on many concurrent workers; per-worker
// counters undercount failures and usage and let every worker
// independently re-trip the same outage. All mutable cross-request state
// therefore goes through this store. The badger backend is durable and
// shared by every worker in the process; badger's exclusive directory
// lock rules out sharing it between processes, so multi-process
// deployments need a client-server Store implementation behind this
// interface. The memory backend serves tests and the degraded mode.
package state

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrUnavailable wraps backend failures so callers can apply their
// configured degraded-mode policy.
var ErrUnavailable = errors.New("state store unavailable")

// Store is the atomic state primitive set. All operations are linearizable
// per key.
type Store interface {
	// Increment atomically adds 1 to the integer at key and returns the
	// new value. A missing or expired key starts from 0. The TTL applies
	// when the increment creates the key; an existing key keeps its
	// expiry so a period window never silently extends.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value at key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set unconditionally writes the value with the given TTL.
	// ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// CompareAndSwap writes new only if the current value equals old.
	// old == nil means "only if absent". Returns whether the swap
	// happened.
	CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error)

	// Close releases backend resources.
	Close() error
}

// EncodeInt renders a counter value for storage.
func EncodeInt(v int64) []byte {
	return strconv.AppendInt(nil, v, 10)
}

// DecodeInt parses a stored counter value; malformed values read as 0 so
// a corrupt entry degrades to a fresh counter rather than an outage.
func DecodeInt(b []byte) int64 {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
