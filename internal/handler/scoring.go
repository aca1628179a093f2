// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package handler

import (
	"time"

	"github.com/altiplano-io/altiplano/internal/models"
)

// ResolutionScore maps raster resolution to a score: finer is higher.
// Step function rather than continuous so that survey-grade LiDAR tiers
// rank identically regardless of sub-meter differences.
func ResolutionScore(resolutionMeters float64) float64 {
	switch {
	case resolutionMeters <= 0.5:
		return 1.0
	case resolutionMeters <= 1:
		return 0.9
	case resolutionMeters <= 5:
		return 0.6
	case resolutionMeters <= 30:
		return 0.3
	default:
		return 0.1
	}
}

// TemporalScore maps capture age in years to a score: newer is higher.
// A zero capture year means the acquisition date is unknown and scores
// lowest.
func TemporalScore(captureYear int, now time.Time) float64 {
	if captureYear <= 0 {
		return 0.1
	}
	age := now.Year() - captureYear
	switch {
	case age <= 2:
		return 1.0
	case age <= 5:
		return 0.8
	case age <= 10:
		return 0.5
	case age <= 20:
		return 0.3
	default:
		return 0.1
	}
}

// SpatialScore rewards tight footprints: a precise local campaign beats a
// broad regional product covering the same point. Area is in square
// degrees.
func SpatialScore(bounds models.BoundingBox) float64 {
	area := bounds.Area()
	switch {
	case area <= 0.25: // roughly a 50 km square
		return 1.0
	case area <= 1:
		return 0.8
	case area <= 25:
		return 0.5
	case area <= 400:
		return 0.3
	default:
		return 0.1
	}
}

// providerTierScores is the static reliability table: authoritative
// government surveys over research institutions over community data.
var providerTierScores = map[models.ProviderTier]float64{
	models.TierGovernment: 1.0,
	models.TierResearch:   0.7,
	models.TierCommunity:  0.4,
	models.TierUnknown:    0.2,
}

// ProviderScore looks up the provider tier score.
func ProviderScore(tier models.ProviderTier) float64 {
	if s, ok := providerTierScores[tier]; ok {
		return s
	}
	return providerTierScores[models.TierUnknown]
}

// ComputeBreakdown assembles the weighted score breakdown shared by all
// built-in handlers. Strategies differ in file selection, not in the
// component formulas, so scores stay comparable across handlers.
func ComputeBreakdown(c *models.Collection, now time.Time, w models.ScoreWeights) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		Resolution: ResolutionScore(c.ResolutionMeters),
		Temporal:   TemporalScore(c.CaptureYear, now),
		Spatial:    SpatialScore(c.Bounds),
		Provider:   ProviderScore(c.ProviderTier),
	}
	b.Total = b.Weighted(w)
	return b
}
