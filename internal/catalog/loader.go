// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/models"
)

var validate = validator.New()

// Loader produces the full collection set. Implementations read whatever
// the upstream indexer wrote (a JSON file here; object storage in larger
// deployments).
type Loader interface {
	Load(ctx context.Context) ([]models.Collection, error)
}

// FileLoader reads a catalog JSON document from disk and normalizes it
// into models.Collection values.
type FileLoader struct {
	Path string
}

// NewFileLoader creates a loader for the given catalog path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

// Load reads and validates the catalog document. Collections that fail
// validation are dropped with a warning rather than poisoning the whole
// load; an empty catalog is legal (remote sources still serve).
func (l *FileLoader) Load(ctx context.Context) ([]models.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", l.Path, err)
	}

	var doc struct {
		Collections []models.Collection `json:"collections"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", l.Path, err)
	}

	out := make([]models.Collection, 0, len(doc.Collections))
	for _, c := range doc.Collections {
		if err := validateCollection(&c); err != nil {
			logging.Warn().Str("collection", c.ID).Err(err).Msg("dropping invalid catalog entry")
			continue
		}
		normalizeBounds(&c)
		out = append(out, c)
	}
	return out, nil
}

// validateCollection enforces the structural invariants a collection must
// satisfy before it can serve queries. Field-level rules live in the
// struct tags; bounds geometry needs a real check, so it stays here.
func validateCollection(c *models.Collection) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}
	if !c.Bounds.Valid() {
		return fmt.Errorf("malformed collection bounds %v", c.Bounds)
	}
	for _, f := range c.Files {
		if !f.Bounds.Valid() {
			return fmt.Errorf("file %s has malformed bounds %v", f.Ref, f.Bounds)
		}
	}
	return nil
}

// normalizeBounds widens the collection bounds to at least the union of
// its file bounds, preserving the superset invariant even when upstream
// metadata understates the footprint. Files missing a per-file resolution
// inherit the collection's.
func normalizeBounds(c *models.Collection) {
	if u, ok := c.FileBoundsUnion(); ok {
		c.Bounds = c.Bounds.Union(u)
	}
	if c.ProviderTier == "" {
		c.ProviderTier = models.TierUnknown
	}
	for i := range c.Files {
		if c.Files[i].ResolutionMeters <= 0 {
			c.Files[i].ResolutionMeters = c.ResolutionMeters
		}
	}
}
