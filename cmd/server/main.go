// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package main is the entry point for the Altiplano server.
//
// Altiplano resolves elevations for WGS84 coordinates from a local raster
// catalog first and a chain of remote elevation APIs after it. The server
// initializes components in the following order:
//
//  1. Configuration: layered defaults, config file and environment (koanf v2)
//  2. State store: badger-backed shared state for breakers and usage counters
//  3. Catalog: load the collection index and build the tiling structures
//  4. Resolution pipeline: handler registry, scorer, local resolver
//  5. Fallback chain: one stage per configured remote source, each behind a
//     circuit breaker and a daily usage limiter
//  6. HTTP server: REST API plus health probes and Prometheus metrics
//
// Long-lived components run under a suture supervisor tree; SIGINT and
// SIGTERM trigger a graceful shutdown through context cancellation.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/altiplano-io/altiplano/internal/api"
	"github.com/altiplano-io/altiplano/internal/breaker"
	"github.com/altiplano-io/altiplano/internal/catalog"
	"github.com/altiplano-io/altiplano/internal/config"
	"github.com/altiplano-io/altiplano/internal/fallback"
	"github.com/altiplano-io/altiplano/internal/handler"
	"github.com/altiplano-io/altiplano/internal/limiter"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
	"github.com/altiplano-io/altiplano/internal/raster"
	"github.com/altiplano-io/altiplano/internal/resolver"
	"github.com/altiplano-io/altiplano/internal/source"
	"github.com/altiplano-io/altiplano/internal/state"
	"github.com/altiplano-io/altiplano/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging)
	logging.Info().Str("listen_addr", cfg.Server.ListenAddr).Msg("starting altiplano")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared state store for breakers and usage counters.
	store, badgerStore, err := openStateStore(cfg.State)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("state store close failed")
		}
	}()

	// Catalog: an unreadable catalog file is not fatal; the remote tiers
	// still serve and readiness reports the gap.
	catalogStore := catalog.NewStore(cfg.Catalog.TilingThreshold, cfg.Catalog.CellSizeDegrees)
	reloader := catalog.NewReloader(catalog.NewFileLoader(cfg.Catalog.Path), catalogStore)
	if err := reloader.Reload(ctx); err != nil {
		logging.Warn().Err(err).Str("path", cfg.Catalog.Path).Msg("initial catalog load failed, serving without local data")
		catalogStore.Replace(nil)
	}

	orch, err := buildChain(cfg, catalogStore, store)
	if err != nil {
		return err
	}

	router := api.NewRouter(cfg.Server, api.NewHandler(orch, catalogStore, reloader))
	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(supervisor.NewCatalogReloadService(reloader, cfg.Catalog.ReloadInterval))
	if badgerStore != nil {
		tree.AddMaintenanceService(supervisor.NewStateGCService(badgerStore, cfg.State.GCInterval))
	}

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// openStateStore returns the configured store plus the badger handle when
// that backend is active, for the GC service.
func openStateStore(cfg config.StateConfig) (state.Store, *state.BadgerStore, error) {
	switch cfg.Backend {
	case "badger":
		bs, err := state.OpenBadger(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil
	case "memory":
		return state.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// buildChain assembles the fallback chain: the local resolver stage, then
// one guarded remote stage per configured source, in list order.
func buildChain(cfg *config.Config, catalogStore *catalog.Store, store state.Store) (*fallback.Orchestrator, error) {
	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	// StaticReader serves until a decoding backend is wired in; deployments
	// without raster storage rely on the remote tiers.
	localResolver := resolver.New(
		catalogStore,
		handler.DefaultRegistry(),
		raster.NewStaticReader(),
		cfg.Scoring.Weights,
	)

	stages := make([]fallback.Stage, 0, 1+len(cfg.Sources))
	stages = append(stages, fallback.NewLocalStage(localResolver, cfg.Scoring.LocalTimeout))

	for _, sc := range cfg.Sources {
		local := breaker.NewLocal(breaker.Settings{
			Source:           sc.Name,
			FailureThreshold: sc.FailureThreshold,
			RecoveryTimeout:  sc.RecoveryTimeout,
		})
		brk := breaker.NewShared(breaker.Settings{
			Source:           sc.Name,
			FailureThreshold: sc.FailureThreshold,
			RecoveryTimeout:  sc.RecoveryTimeout,
		}, store, cfg.State.DegradedPolicy, local)
		lim := limiter.New(limiter.Settings{
			Source:         sc.Name,
			DailyLimit:     sc.DailyLimit,
			BurstPerSecond: sc.BurstPerSecond,
		}, store, cfg.State.DegradedPolicy)

		metrics.BreakerState.WithLabelValues(sc.Name).Set(metrics.BreakerStateValue(string(models.BreakerClosed)))
		stages = append(stages, fallback.NewRemoteStage(
			source.NewHTTPClient(sc), brk, lim, sc.Timeout, remoteResolutionMeters,
		))
	}

	return fallback.New(stages...), nil
}

// remoteResolutionMeters is the nominal SRTM-class resolution reported
// for remote tiers.
const remoteResolutionMeters = 30
