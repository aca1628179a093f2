// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package models

// CollectionType distinguishes survey campaigns (one-off acquisition with a
// capture year) from standing zones (regional products refreshed on a cycle).
type CollectionType string

const (
	CollectionCampaign CollectionType = "campaign"
	CollectionZone     CollectionType = "zone"
)

// ProviderTier classifies the reliability of a data provider. Scoring maps
// each tier to a static component score.
type ProviderTier string

const (
	TierGovernment ProviderTier = "government"
	TierResearch   ProviderTier = "research"
	TierCommunity  ProviderTier = "community"
	TierUnknown    ProviderTier = "unknown"
)

// FileEntry is one georeferenced raster file belonging to a Collection.
// Ref is an opaque storage key; the core never interprets it, only hands it
// to the raster reader.
type FileEntry struct {
	Ref    string      `json:"ref" validate:"required"`
	Bounds BoundingBox `json:"bounds"`

	// ResolutionMeters may be zero in catalog documents; loading fills
	// it from the collection, hence omitempty.
	ResolutionMeters float64 `json:"resolution_meters" validate:"omitempty,gt=0"`
	SizeBytes        int64   `json:"size_bytes"`
}

// Collection is a named set of georeferenced files sharing provider,
// campaign and resolution metadata (e.g. one region's 2019 LiDAR survey).
//
// Invariant: Bounds equals or conservatively exceeds the union of the
// files' bounds, so a collection-level containment test may produce false
// positives that file-level bounds later reject, but never false negatives.
type Collection struct {
	ID               string         `json:"id" validate:"required"`
	Country          string         `json:"country"`
	Type             CollectionType `json:"type" validate:"omitempty,oneof=campaign zone"`
	Bounds           BoundingBox    `json:"bounds"`
	ResolutionMeters float64        `json:"resolution_meters" validate:"gt=0"`
	CaptureYear      int            `json:"capture_year"`
	Provider         string         `json:"provider"`
	ProviderTier     ProviderTier   `json:"provider_tier"`
	BasePriority     float64        `json:"base_priority"`
	Files            []FileEntry    `json:"files" validate:"dive"`
}

// Contains reports whether the collection's declared bounds contain the
// point. A true result is only a candidate signal; file bounds decide.
func (c *Collection) Contains(lat, lon float64) bool {
	return c.Bounds.Contains(lat, lon)
}

// FileBoundsUnion computes the union of all file bounds. Catalog loading
// uses it to verify the collection-bounds invariant.
func (c *Collection) FileBoundsUnion() (BoundingBox, bool) {
	if len(c.Files) == 0 {
		return BoundingBox{}, false
	}
	u := c.Files[0].Bounds
	for _, f := range c.Files[1:] {
		u = u.Union(f.Bounds)
	}
	return u, true
}
