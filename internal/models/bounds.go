// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package models

import "fmt"

// BoundingBox is the normalized geographic bounds type used everywhere in
// the pipeline. Catalog loading converts whatever shape the upstream
// metadata uses into this struct once; no other representation exists
// downstream.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" koanf:"min_lat"`
	MinLon float64 `json:"min_lon" koanf:"min_lon"`
	MaxLat float64 `json:"max_lat" koanf:"max_lat"`
	MaxLon float64 `json:"max_lon" koanf:"max_lon"`
}

// Valid reports whether the box is well-formed: min <= max on both axes
// and all corners inside the WGS84 coordinate domain.
func (b BoundingBox) Valid() bool {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return false
	}
	return b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLon >= -180 && b.MaxLon <= 180
}

// Contains reports whether the point lies inside the box. Edges are
// inclusive so a point exactly on a file boundary still matches the file.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Area returns the box area in square degrees. Used for spatial
// specificity scoring; not an earth-surface area.
func (b BoundingBox) Area() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLon - b.MinLon)
}

// Union returns the smallest box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	u := b
	if o.MinLat < u.MinLat {
		u.MinLat = o.MinLat
	}
	if o.MinLon < u.MinLon {
		u.MinLon = o.MinLon
	}
	if o.MaxLat > u.MaxLat {
		u.MaxLat = o.MaxLat
	}
	if o.MaxLon > u.MaxLon {
		u.MaxLon = o.MaxLon
	}
	return u
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.6f,%.6f %.6f,%.6f]", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// ValidationError reports malformed coordinate input. It is the only error
// in the resolution pipeline that propagates to callers; every other
// condition is absorbed into the ElevationResult.
type ValidationError struct {
	Field string
	Value float64
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Msg)
}

// ValidateCoordinate checks lat/lon against the WGS84 domain.
func ValidateCoordinate(lat, lon float64) error {
	if lat != lat || lat < -90 || lat > 90 {
		return &ValidationError{Field: "lat", Value: lat, Msg: "latitude must be in [-90, 90]"}
	}
	if lon != lon || lon < -180 || lon > 180 {
		return &ValidationError{Field: "lon", Value: lon, Msg: "longitude must be in [-180, 180]"}
	}
	return nil
}
