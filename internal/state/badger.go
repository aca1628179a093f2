// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/altiplano-io/altiplano/internal/logging"
)

// casRetries bounds optimistic-transaction retries under write contention.
const casRetries = 8

// BadgerStore implements Store on BadgerDB. Entries carry badger-native
// TTLs so expired counters and breaker states vanish without a sweeper.
// Badger holds an exclusive lock on its directory: exactly one process
// owns the store, and every worker goroutine in it shares this handle.
// Scaling to multiple processes requires a networked Store backend.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logger is noisy; we log outcomes ourselves
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open database (shared with other
// components).
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Increment implements Store. Runs as an optimistic transaction and
// retries on conflict, so concurrent increments from many workers never
// lose updates.
func (s *BadgerStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var out int64
	err := s.retry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			k := []byte(key)
			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				out = 1
				e := badger.NewEntry(k, EncodeInt(1))
				if ttl > 0 {
					e = e.WithTTL(ttl)
				}
				return txn.SetEntry(e)
			case err != nil:
				return err
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = DecodeInt(val) + 1

			e := badger.NewEntry(k, EncodeInt(out))
			// Preserve the original expiry; an increment must not
			// extend the period window.
			if exp := item.ExpiresAt(); exp > 0 {
				remaining := time.Until(time.Unix(int64(exp), 0))
				if remaining <= 0 {
					out = 1
					e = badger.NewEntry(k, EncodeInt(1))
					remaining = ttl
				}
				if remaining > 0 {
					e = e.WithTTL(remaining)
				}
			}
			return txn.SetEntry(e)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: increment %s: %w", ErrUnavailable, key, err)
	}
	return out, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("%w: get %s: %w", ErrUnavailable, key, err)
	}
	return out, true, nil
}

// Set implements Store.
func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.retry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			e := badger.NewEntry([]byte(key), value)
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			return txn.SetEntry(e)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrUnavailable, key, err)
	}
	return nil
}

// CompareAndSwap implements Store. The read and write share one
// serializable transaction, so a concurrent writer forces a conflict
// instead of a lost update.
func (s *BadgerStore) CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) (bool, error) {
	swapped := false
	err := s.retry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			swapped = false
			k := []byte(key)
			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				if old != nil {
					return nil
				}
			case err != nil:
				return err
			default:
				if old == nil {
					return nil
				}
				current, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if !bytes.Equal(current, old) {
					return nil
				}
			}

			e := badger.NewEntry(k, new)
			if ttl > 0 {
				e = e.WithTTL(ttl)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
			swapped = true
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("%w: cas %s: %w", ErrUnavailable, key, err)
	}
	return swapped, nil
}

// retry re-runs fn on optimistic-transaction conflicts.
func (s *BadgerStore) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < casRetries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// RunGC runs one badger value-log GC pass. Called periodically by the
// supervisor's GC service.
func (s *BadgerStore) RunGC() {
	if err := s.db.RunValueLogGC(0.5); err != nil &&
		!errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
		logging.Warn().Err(err).Msg("badger value-log GC failed")
	}
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
