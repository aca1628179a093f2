// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"context"
	"sync"

	"github.com/altiplano-io/altiplano/internal/logging"
)

// Reloader loads collections from a Loader and swaps them into a Store.
// Reloads are serialized; a failed load leaves the previous snapshot in
// place.
type Reloader struct {
	loader Loader
	store  *Store
	mu     sync.Mutex
}

// NewReloader binds a loader to a store.
func NewReloader(loader Loader, store *Store) *Reloader {
	return &Reloader{loader: loader, store: store}
}

// Reload loads the catalog and atomically replaces the store snapshot.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	collections, err := r.loader.Load(ctx)
	if err != nil {
		return err
	}
	r.store.Replace(collections)

	c, f := r.store.Stats()
	logging.Info().Int("collections", c).Int("files", f).Msg("catalog reloaded")
	return nil
}
