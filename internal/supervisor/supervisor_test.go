// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/altiplano-io/altiplano/internal/logging"
)

// mockServer scripts HTTPServer lifecycle behavior.
type mockServer struct {
	listenErr   error
	release     chan struct{}
	shutdowns   atomic.Int32
	shutdownErr error
}

func newMockServer() *mockServer {
	return &mockServer{release: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	srv := newMockServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdowns.Load())
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	t.Parallel()

	srv := newMockServer()
	srv.listenErr = errors.New("listen tcp: address in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve returned nil for a failed listen")
	}
}

// tickReloader counts reloads, failing the first scripted number.
type tickReloader struct {
	calls    atomic.Int32
	failures int32
}

func (r *tickReloader) Reload(_ context.Context) error {
	n := r.calls.Add(1)
	if n <= r.failures {
		return errors.New("scripted reload failure")
	}
	return nil
}

func TestCatalogReloadServiceTicks(t *testing.T) {
	t.Parallel()

	reloader := &tickReloader{failures: 1}
	svc := NewCatalogReloadService(reloader, 15*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}

	// A failed tick must not stop subsequent ticks.
	if got := reloader.calls.Load(); got < 2 {
		t.Errorf("reload ran %d times, want at least 2", got)
	}
}

func TestCatalogReloadServiceDisabled(t *testing.T) {
	t.Parallel()

	reloader := &tickReloader{}
	svc := NewCatalogReloadService(reloader, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if reloader.calls.Load() != 0 {
		t.Errorf("disabled service still reloaded %d times", reloader.calls.Load())
	}
}

type countingGC struct {
	calls atomic.Int32
}

func (g *countingGC) RunGC() { g.calls.Add(1) }

func TestStateGCServiceTicks(t *testing.T) {
	t.Parallel()

	gc := &countingGC{}
	svc := NewStateGCService(gc, 15*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve returned %v", err)
	}
	if gc.calls.Load() < 2 {
		t.Errorf("gc ran %d times, want at least 2", gc.calls.Load())
	}
}

func TestTreeServesAndStops(t *testing.T) {
	t.Parallel()

	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())
	srv := newMockServer()
	tree.AddAPIService(NewHTTPServerService(srv, time.Second))
	tree.AddMaintenanceService(NewCatalogReloadService(&tickReloader{}, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("http server shut down %d times, want 1", srv.shutdowns.Load())
	}
}
