// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package handler implements per-provider collection strategies.
//
// Different providers and countries encode coverage and priority
// differently. Rather than branching on country codes inside the resolver,
// each strategy registers a Handler; the registry dispatches on CanHandle
// in registration order and the first match owns the collection. Adding a
// provider means adding a Handler, never touching the resolver.
package handler

import (
	"time"

	"github.com/altiplano-io/altiplano/internal/models"
)

// Handler scores a collection for a query point and selects the file to
// read. Implementations must be stateless and safe for concurrent use.
type Handler interface {
	// Name identifies the strategy in logs and diagnostics.
	Name() string

	// CanHandle reports whether this strategy owns the collection.
	CanHandle(c *models.Collection) bool

	// Score computes the full score breakdown for the collection at the
	// query point. now supplies the reference year for temporal scoring.
	Score(c *models.Collection, lat, lon float64, now time.Time, w models.ScoreWeights) models.ScoreBreakdown

	// SelectFile picks the file to read from the candidates whose
	// precise bounds already contain the point. Returns nil when none
	// qualifies; that collection is then a miss.
	SelectFile(c *models.Collection, candidates []*models.FileEntry, lat, lon float64) *models.FileEntry
}

// Registry dispatches collections to the first registered handler that
// claims them. Registration happens once at startup; lookups take no lock.
type Registry struct {
	handlers []Handler
}

// NewRegistry creates a registry with the given handlers in dispatch
// order. A GenericHandler should be registered last as the catch-all.
func NewRegistry(handlers ...Handler) *Registry {
	return &Registry{handlers: handlers}
}

// Register appends a handler. Later registrations only see collections no
// earlier handler claims.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// For returns the handler owning the collection, or nil when no handler
// claims it (such a collection never serves queries).
func (r *Registry) For(c *models.Collection) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(c) {
			return h
		}
	}
	return nil
}

// DefaultRegistry wires the built-in strategies: survey campaigns, zones,
// then the generic catch-all.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&CampaignHandler{},
		&ZoneHandler{},
		&GenericHandler{},
	)
}
