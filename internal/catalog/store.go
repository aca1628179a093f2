// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"errors"
	"sync/atomic"

	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
)

// ErrNoCoverage reports that no collection's bounds contain the queried
// point. It is a routine chain-advance signal, not a failure.
var ErrNoCoverage = errors.New("no local collection covers the point")

// snapshot is one immutable catalog generation. Reload builds a fresh
// snapshot and swaps the pointer; nothing inside is ever mutated.
type snapshot struct {
	collections []*models.Collection
	byID        map[string]*models.Collection
	tiles       map[string]*TileIndex
	fileCount   int
}

// Store serves point-containment queries against the active catalog
// snapshot. Reads take no locks; Replace performs an atomic pointer swap.
type Store struct {
	current         atomic.Pointer[snapshot]
	tilingThreshold int
	cellSize        float64
}

// NewStore creates an empty store. Collections with at least
// tilingThreshold files get a TileIndex with the given cell size.
func NewStore(tilingThreshold int, cellSizeDegrees float64) *Store {
	s := &Store{tilingThreshold: tilingThreshold, cellSize: cellSizeDegrees}
	s.current.Store(&snapshot{byID: map[string]*models.Collection{}, tiles: map[string]*TileIndex{}})
	return s
}

// Replace swaps in a whole new catalog generation. In-flight readers keep
// the snapshot they already hold; new readers see the new one.
func (s *Store) Replace(collections []models.Collection) {
	snap := &snapshot{
		collections: make([]*models.Collection, 0, len(collections)),
		byID:        make(map[string]*models.Collection, len(collections)),
		tiles:       make(map[string]*TileIndex),
	}
	for i := range collections {
		c := &collections[i]
		snap.collections = append(snap.collections, c)
		snap.byID[c.ID] = c
		snap.fileCount += len(c.Files)
		if s.tilingThreshold > 0 && len(c.Files) >= s.tilingThreshold {
			idx := NewTileIndex(c.Files, s.cellSize)
			snap.tiles[c.ID] = idx
			metrics.TileIndexCells.WithLabelValues(c.ID).Set(float64(idx.Cells()))
		}
	}
	s.current.Store(snap)

	metrics.CatalogCollections.Set(float64(len(snap.collections)))
	metrics.CatalogFiles.Set(float64(snap.fileCount))
}

// FindCollectionsContaining returns every collection whose declared bounds
// contain the point, in catalog order. Collection bounds may be a superset
// of file bounds; callers must still match at file level.
func (s *Store) FindCollectionsContaining(lat, lon float64) []*models.Collection {
	snap := s.current.Load()
	var out []*models.Collection
	for _, c := range snap.collections {
		if c.Contains(lat, lon) {
			out = append(out, c)
		}
	}
	return out
}

// CandidateFiles returns the collection's files whose precise bounds
// contain the point, using the tiling index when one exists.
func (s *Store) CandidateFiles(collectionID string, lat, lon float64) []*models.FileEntry {
	snap := s.current.Load()
	if idx, ok := snap.tiles[collectionID]; ok {
		return idx.FilesContaining(lat, lon)
	}
	c, ok := snap.byID[collectionID]
	if !ok {
		return nil
	}
	var out []*models.FileEntry
	for i := range c.Files {
		if c.Files[i].Bounds.Contains(lat, lon) {
			out = append(out, &c.Files[i])
		}
	}
	return out
}

// Collection returns the collection with the given id, if present.
func (s *Store) Collection(id string) (*models.Collection, bool) {
	c, ok := s.current.Load().byID[id]
	return c, ok
}

// Stats reports the active snapshot's collection and file counts.
func (s *Store) Stats() (collections, files int) {
	snap := s.current.Load()
	return len(snap.collections), snap.fileCount
}
