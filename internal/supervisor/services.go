// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/altiplano-io/altiplano/internal/logging"
)

// HTTPServer matches *http.Server's lifecycle methods so tests can
// substitute a mock.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService bridges http.Server's blocking ListenAndServe to
// suture's context-aware Serve.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps an HTTP server as a supervised service.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is the normal
// shutdown outcome and is not treated as a failure.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The serve context is canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *HTTPServerService) String() string { return "http-server" }

// Reloader re-reads the catalog from its source of truth.
type Reloader interface {
	Reload(ctx context.Context) error
}

// CatalogReloadService periodically reloads the catalog so new
// collections appear without a restart. A failed reload keeps the
// previous snapshot serving and retries next tick.
type CatalogReloadService struct {
	reloader Reloader
	interval time.Duration
}

// NewCatalogReloadService creates the periodic reload job.
func NewCatalogReloadService(reloader Reloader, interval time.Duration) *CatalogReloadService {
	return &CatalogReloadService{reloader: reloader, interval: interval}
}

// Serve implements suture.Service.
func (s *CatalogReloadService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		// Periodic reload disabled; park until shutdown so suture does
		// not restart-loop this service.
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.reloader.Reload(ctx); err != nil {
				logging.Warn().Err(err).Msg("periodic catalog reload failed, keeping previous snapshot")
			}
		}
	}
}

func (s *CatalogReloadService) String() string { return "catalog-reload" }

// GarbageCollector runs one storage GC pass. Pass failures are logged
// by the implementation; GC is advisory.
type GarbageCollector interface {
	RunGC()
}

// StateGCService periodically compacts the state store's value log.
type StateGCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewStateGCService creates the periodic GC job.
func NewStateGCService(gc GarbageCollector, interval time.Duration) *StateGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StateGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service.
func (s *StateGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.gc.RunGC()
		}
	}
}

func (s *StateGCService) String() string { return "state-gc" }
