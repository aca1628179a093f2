// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"math"

	"github.com/altiplano-io/altiplano/internal/models"
)

// cellEpsilon is the distance in degrees from a cell edge at which the
// neighboring cell is also consulted. Guards against a point sitting
// exactly on an edge being assigned to only one of two adjoining cells.
const cellEpsilon = 1e-9

// cellKey addresses one grid cell.
type cellKey struct {
	X, Y int
}

// TileIndex partitions one dense collection's files into a fixed-size
// degree grid. A file is indexed under every cell its bounds overlap, so a
// point's own cell always lists every file that can contain it. Lookup is
// O(1) amortized versus the O(n) linear file scan.
type TileIndex struct {
	cellSize float64
	cells    map[cellKey][]*models.FileEntry
}

// NewTileIndex builds the index for the given files. cellSizeDegrees must
// be positive; ~0.02 degrees (~2 km) suits dense LiDAR campaigns.
func NewTileIndex(files []models.FileEntry, cellSizeDegrees float64) *TileIndex {
	if cellSizeDegrees <= 0 {
		cellSizeDegrees = 0.02
	}
	idx := &TileIndex{
		cellSize: cellSizeDegrees,
		cells:    make(map[cellKey][]*models.FileEntry),
	}
	for i := range files {
		f := &files[i]
		idx.insert(f)
	}
	return idx
}

// insert registers the file under every cell its bounds overlap.
func (idx *TileIndex) insert(f *models.FileEntry) {
	minX := int(math.Floor(f.Bounds.MinLon / idx.cellSize))
	maxX := int(math.Floor(f.Bounds.MaxLon / idx.cellSize))
	minY := int(math.Floor(f.Bounds.MinLat / idx.cellSize))
	maxY := int(math.Floor(f.Bounds.MaxLat / idx.cellSize))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			key := cellKey{X: x, Y: y}
			idx.cells[key] = append(idx.cells[key], f)
		}
	}
}

// candidateCells returns the point's cell, plus adjoining cells when the
// point lies within cellEpsilon of an edge (1 to 4 cells total).
func (idx *TileIndex) candidateCells(lat, lon float64) []cellKey {
	x := int(math.Floor(lon / idx.cellSize))
	y := int(math.Floor(lat / idx.cellSize))

	xs := []int{x}
	if math.Abs(lon-float64(x)*idx.cellSize) < cellEpsilon {
		xs = append(xs, x-1)
	}
	ys := []int{y}
	if math.Abs(lat-float64(y)*idx.cellSize) < cellEpsilon {
		ys = append(ys, y-1)
	}

	keys := make([]cellKey, 0, len(xs)*len(ys))
	for _, cx := range xs {
		for _, cy := range ys {
			keys = append(keys, cellKey{X: cx, Y: cy})
		}
	}
	return keys
}

// FilesContaining returns the files whose precise bounds contain the
// point. Cell membership only narrows the scan; true file bounds decide,
// so a point on a cell boundary can never produce a false negative.
func (idx *TileIndex) FilesContaining(lat, lon float64) []*models.FileEntry {
	var out []*models.FileEntry
	seen := make(map[*models.FileEntry]bool)
	for _, key := range idx.candidateCells(lat, lon) {
		for _, f := range idx.cells[key] {
			if seen[f] {
				continue
			}
			seen[f] = true
			if f.Bounds.Contains(lat, lon) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Cells returns the number of grid cells in the index.
func (idx *TileIndex) Cells() int {
	return len(idx.cells)
}
