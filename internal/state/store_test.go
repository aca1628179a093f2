// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// openStores returns both backends so every test exercises identical
// semantics against each.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	bs := NewBadgerStore(db)
	ms := NewMemoryStore()
	t.Cleanup(func() {
		_ = bs.Close()
		_ = ms.Close()
	})
	return map[string]Store{"badger": bs, "memory": ms}
}

func TestStore_IncrementStartsAtOne(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for want := int64(1); want <= 5; want++ {
				got, err := s.Increment(ctx, "counter", time.Hour)
				if err != nil {
					t.Fatalf("Increment: %v", err)
				}
				if got != want {
					t.Errorf("Increment #%d = %d", want, got)
				}
			}
		})
	}
}

func TestStore_IncrementConcurrent(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers, perWorker = 8, 25

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						if _, err := s.Increment(ctx, "contended", time.Hour); err != nil {
							t.Errorf("Increment: %v", err)
							return
						}
					}
				}()
			}
			wg.Wait()

			val, ok, err := s.Get(ctx, "contended")
			if err != nil || !ok {
				t.Fatalf("Get: ok=%v err=%v", ok, err)
			}
			if got := DecodeInt(val); got != workers*perWorker {
				t.Errorf("final count = %d, want %d (lost updates)", got, workers*perWorker)
			}
		})
	}
}

func TestStore_CompareAndSwap(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Create-if-absent.
			ok, err := s.CompareAndSwap(ctx, "k", nil, []byte("v1"), 0)
			if err != nil || !ok {
				t.Fatalf("initial CAS: ok=%v err=%v", ok, err)
			}
			// Second create-if-absent must lose.
			if ok, _ = s.CompareAndSwap(ctx, "k", nil, []byte("v1b"), 0); ok {
				t.Error("create-if-absent succeeded on existing key")
			}
			// Wrong expected value must lose.
			if ok, _ = s.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v2"), 0); ok {
				t.Error("CAS with stale expected value succeeded")
			}
			// Correct expected value wins.
			if ok, _ = s.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"), 0); !ok {
				t.Error("CAS with correct expected value failed")
			}
			val, _, _ := s.Get(ctx, "k")
			if string(val) != "v2" {
				t.Errorf("value = %q, want v2", val)
			}
		})
	}
}

func TestStore_CompareAndSwap_SingleWinner(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Set(ctx, "race", []byte("base"), 0); err != nil {
				t.Fatal(err)
			}

			var wins int64
			var mu sync.Mutex
			var wg sync.WaitGroup
			for w := 0; w < 10; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.CompareAndSwap(ctx, "race", []byte("base"), []byte("won"), 0)
					if err != nil {
						t.Errorf("CAS: %v", err)
						return
					}
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Errorf("%d CAS winners, want exactly 1", wins)
			}
		})
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if _, err := s.Increment(ctx, "c", time.Hour); err != nil {
		t.Fatal(err)
	}

	// Within the window the counter persists.
	now = now.Add(30 * time.Minute)
	if v, _ := s.Increment(ctx, "c", time.Hour); v != 2 {
		t.Errorf("count inside window = %d, want 2", v)
	}

	// After expiry the counter restarts atomically at 1, never a
	// partial value.
	now = now.Add(2 * time.Hour)
	if v, _ := s.Increment(ctx, "c", time.Hour); v != 1 {
		t.Errorf("count after expiry = %d, want 1", v)
	}
}

func TestMemoryStore_IncrementDoesNotExtendWindow(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, _ = s.Increment(ctx, "c", time.Hour)
	now = now.Add(50 * time.Minute)
	_, _ = s.Increment(ctx, "c", time.Hour) // must keep the original expiry

	now = now.Add(20 * time.Minute) // 70 min after creation
	if _, ok, _ := s.Get(ctx, "c"); ok {
		t.Error("window silently extended by increment")
	}
}

func TestEncodeDecodeInt(t *testing.T) {
	t.Parallel()

	for _, v := range []int64{0, 1, 42, 1<<40 + 7} {
		if got := DecodeInt(EncodeInt(v)); got != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
	if DecodeInt([]byte("garbage")) != 0 {
		t.Error("malformed counter must decode as 0")
	}
}
