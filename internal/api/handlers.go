// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/altiplano-io/altiplano/internal/catalog"
	"github.com/altiplano-io/altiplano/internal/fallback"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
)

// Reloader triggers a catalog reload on demand.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Handler serves all API endpoints.
type Handler struct {
	orchestrator *fallback.Orchestrator
	store        *catalog.Store
	reloader     Reloader
}

// NewHandler wires the endpoints to their backends.
func NewHandler(orch *fallback.Orchestrator, store *catalog.Store, reloader Reloader) *Handler {
	return &Handler{orchestrator: orch, store: store, reloader: reloader}
}

// Elevation handles GET /api/v1/elevation?lat=&lon=.
func (h *Handler) Elevation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	lat, err := parseCoord(r, "lat")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	lon, err := parseCoord(r, "lon")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	result, err := h.orchestrator.Resolve(r.Context(), lat, lon)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondError(w, r, http.StatusBadRequest, CodeInvalidRequest, verr.Error())
			return
		}
		logging.Error().Err(err).Msg("resolve failed")
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "resolution failed")
		return
	}

	respondData(w, r, http.StatusOK, result, start)
}

func parseCoord(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &models.ValidationError{Field: name, Msg: "required query parameter"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Msg: "not a number"}
	}
	return v, nil
}

// HealthLive handles GET /api/v1/health/live. Always OK while the
// process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady handles GET /api/v1/health/ready. Ready means the catalog
// holds at least one collection; an empty catalog still serves remote
// tiers but is reported as not ready so orchestration can hold traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	collections, files := h.store.Stats()
	if collections == 0 {
		respondError(w, r, http.StatusServiceUnavailable, CodeNotReady, "catalog is empty")
		return
	}
	respondData(w, r, http.StatusOK, map[string]any{
		"status":      "ready",
		"collections": collections,
		"files":       files,
		"sources":     h.orchestrator.Sources(),
	}, time.Now())
}

// Breakers handles GET /api/v1/status/breakers.
func (h *Handler) Breakers(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]any{
		"breakers": h.orchestrator.BreakerStatuses(r.Context()),
	}, time.Now())
}

// CatalogReload handles POST /api/v1/catalog/reload.
func (h *Handler) CatalogReload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.reloader.Reload(r.Context()); err != nil {
		metrics.CatalogReloads.WithLabelValues("failure").Inc()
		logging.Error().Err(err).Msg("catalog reload failed")
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "reload failed: "+err.Error())
		return
	}
	metrics.CatalogReloads.WithLabelValues("success").Inc()
	collections, files := h.store.Stats()
	respondData(w, r, http.StatusOK, map[string]any{
		"collections": collections,
		"files":       files,
	}, start)
}
