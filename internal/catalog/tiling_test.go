// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"fmt"
	"testing"

	"github.com/altiplano-io/altiplano/internal/models"
)

func gridFiles(n int, origin float64, step float64) []models.FileEntry {
	// n*n adjacent tiles starting at (origin, origin).
	files := make([]models.FileEntry, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			files = append(files, models.FileEntry{
				Ref: fmt.Sprintf("tile_%d_%d.tif", i, j),
				Bounds: models.BoundingBox{
					MinLat: origin + float64(i)*step,
					MinLon: origin + float64(j)*step,
					MaxLat: origin + float64(i+1)*step,
					MaxLon: origin + float64(j+1)*step,
				},
				ResolutionMeters: 1,
			})
		}
	}
	return files
}

func TestTileIndex_FilesContaining(t *testing.T) {
	t.Parallel()

	files := gridFiles(10, 0, 0.01) // 100 tiles of 0.01 degrees
	idx := NewTileIndex(files, 0.02)

	got := idx.FilesContaining(0.015, 0.025)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 file, got %d", len(got))
	}
	if got[0].Ref != "tile_1_2.tif" {
		t.Errorf("selected %s, want tile_1_2.tif", got[0].Ref)
	}
}

func TestTileIndex_PointOutsideAllFiles(t *testing.T) {
	t.Parallel()

	idx := NewTileIndex(gridFiles(4, 0, 0.01), 0.02)
	if got := idx.FilesContaining(5, 5); len(got) != 0 {
		t.Errorf("expected no files, got %d", len(got))
	}
}

func TestTileIndex_PointOnFileBoundary(t *testing.T) {
	t.Parallel()

	// Shared edge between tile_0_0 and tile_0_1 at lon=0.01. Edges are
	// inclusive, so both adjacent tiles must match.
	idx := NewTileIndex(gridFiles(2, 0, 0.01), 0.02)
	got := idx.FilesContaining(0.005, 0.01)
	if len(got) != 2 {
		t.Fatalf("boundary point matched %d files, want 2", len(got))
	}
}

func TestTileIndex_PointOnCellBoundary(t *testing.T) {
	t.Parallel()

	// 0.02 lies exactly on a cell edge with 0.02-degree cells. The file
	// containing that point must still be found (no false negative from
	// cell assignment).
	files := []models.FileEntry{
		{
			Ref:              "west.tif",
			Bounds:           models.BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 0.04, MaxLon: 0.02},
			ResolutionMeters: 1,
		},
		{
			Ref:              "east.tif",
			Bounds:           models.BoundingBox{MinLat: 0, MinLon: 0.02, MaxLat: 0.04, MaxLon: 0.04},
			ResolutionMeters: 1,
		},
	}
	idx := NewTileIndex(files, 0.02)

	got := idx.FilesContaining(0.01, 0.02)
	if len(got) != 2 {
		t.Fatalf("cell-boundary point matched %d files, want 2", len(got))
	}
}

func TestTileIndex_SpanningFileIndexedInAllCells(t *testing.T) {
	t.Parallel()

	// One broad file spanning many cells must be found from any of them.
	wide := []models.FileEntry{{
		Ref:              "regional.tif",
		Bounds:           models.BoundingBox{MinLat: -1, MinLon: -1, MaxLat: 1, MaxLon: 1},
		ResolutionMeters: 30,
	}}
	idx := NewTileIndex(wide, 0.02)

	for _, pt := range [][2]float64{{-0.99, -0.99}, {0, 0}, {0.37, -0.42}, {1, 1}} {
		if got := idx.FilesContaining(pt[0], pt[1]); len(got) != 1 {
			t.Errorf("point %v matched %d files, want 1", pt, len(got))
		}
	}
}

func TestTileIndex_NoDuplicatesAcrossCells(t *testing.T) {
	t.Parallel()

	// A point near a cell corner consults up to 4 cells; a file indexed
	// in all of them must appear once.
	f := []models.FileEntry{{
		Ref:              "corner.tif",
		Bounds:           models.BoundingBox{MinLat: -0.05, MinLon: -0.05, MaxLat: 0.05, MaxLon: 0.05},
		ResolutionMeters: 1,
	}}
	idx := NewTileIndex(f, 0.02)

	if got := idx.FilesContaining(0, 0); len(got) != 1 {
		t.Errorf("corner point matched %d files, want 1", len(got))
	}
}
