// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/altiplano-io/altiplano/internal/models"
)

func testCollections() []models.Collection {
	return []models.Collection{
		{
			ID:               "nz-wellington-2021",
			Country:          "NZ",
			Type:             models.CollectionCampaign,
			Bounds:           models.BoundingBox{MinLat: -41.4, MinLon: 174.6, MaxLat: -41.1, MaxLon: 175.0},
			ResolutionMeters: 1,
			CaptureYear:      2021,
			Files: []models.FileEntry{
				{Ref: "wgtn/a.tif", Bounds: models.BoundingBox{MinLat: -41.4, MinLon: 174.6, MaxLat: -41.25, MaxLon: 174.8}, ResolutionMeters: 1},
				{Ref: "wgtn/b.tif", Bounds: models.BoundingBox{MinLat: -41.25, MinLon: 174.8, MaxLat: -41.1, MaxLon: 175.0}, ResolutionMeters: 1},
			},
		},
		{
			ID:               "global-srtm",
			Type:             models.CollectionZone,
			Bounds:           models.BoundingBox{MinLat: -60, MinLon: -180, MaxLat: 60, MaxLon: 180},
			ResolutionMeters: 90,
			CaptureYear:      2000,
			Files: []models.FileEntry{
				{Ref: "srtm/S42E174.hgt", Bounds: models.BoundingBox{MinLat: -42, MinLon: 174, MaxLat: -41, MaxLon: 175}, ResolutionMeters: 90},
			},
		},
	}
}

func TestStore_FindCollectionsContaining(t *testing.T) {
	t.Parallel()

	s := NewStore(500, 0.02)
	s.Replace(testCollections())

	got := s.FindCollectionsContaining(-41.3, 174.7)
	if len(got) != 2 {
		t.Fatalf("got %d collections, want 2", len(got))
	}

	got = s.FindCollectionsContaining(48.8, 2.3)
	if len(got) != 1 || got[0].ID != "global-srtm" {
		t.Fatalf("Paris should match only global-srtm, got %d", len(got))
	}

	if got = s.FindCollectionsContaining(75.0, 0); len(got) != 0 {
		t.Errorf("arctic point should match nothing, got %d", len(got))
	}
}

func TestStore_CandidateFiles_LinearScan(t *testing.T) {
	t.Parallel()

	s := NewStore(500, 0.02)
	s.Replace(testCollections())

	files := s.CandidateFiles("nz-wellington-2021", -41.3, 174.7)
	if len(files) != 1 || files[0].Ref != "wgtn/a.tif" {
		t.Fatalf("CandidateFiles = %v, want wgtn/a.tif", files)
	}

	// Collection bounds contain this point but no file does.
	if files = s.CandidateFiles("nz-wellington-2021", -41.12, 174.65); len(files) != 0 {
		t.Errorf("expected collection-level false positive rejected at file level, got %v", files)
	}
}

func TestStore_CandidateFiles_UsesTileIndex(t *testing.T) {
	t.Parallel()

	// Threshold of 4 forces tiling for the 16-tile campaign.
	s := NewStore(4, 0.02)
	dense := models.Collection{
		ID:               "dense-campaign",
		Type:             models.CollectionCampaign,
		Bounds:           models.BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 0.04, MaxLon: 0.04},
		ResolutionMeters: 0.5,
		Files:            gridFiles(4, 0, 0.01),
	}
	s.Replace([]models.Collection{dense})

	snap := s.current.Load()
	if _, ok := snap.tiles["dense-campaign"]; !ok {
		t.Fatal("dense collection did not get a tile index")
	}

	files := s.CandidateFiles("dense-campaign", 0.015, 0.035)
	if len(files) != 1 || files[0].Ref != "tile_1_3.tif" {
		t.Fatalf("CandidateFiles via tiling = %v, want tile_1_3.tif", files)
	}
}

func TestStore_ReplaceIsAtomic(t *testing.T) {
	t.Parallel()

	s := NewStore(500, 0.02)
	s.Replace(testCollections())

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers hammer the store while generations swap underneath them.
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cols := s.FindCollectionsContaining(-41.3, 174.7)
				// Every generation covers the point with 1 or 2
				// collections; a torn read could show anything else.
				if len(cols) < 1 || len(cols) > 2 {
					t.Errorf("torn snapshot: %d collections", len(cols))
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		gen := testCollections()
		gen[0].ID = fmt.Sprintf("nz-wellington-gen%d", i)
		s.Replace(gen)
	}
	close(stop)
	wg.Wait()

	if n, _ := s.Stats(); n != 2 {
		t.Errorf("final snapshot has %d collections, want 2", n)
	}
}
