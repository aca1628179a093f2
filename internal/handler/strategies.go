// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package handler

import (
	"time"

	"github.com/altiplano-io/altiplano/internal/models"
)

// CampaignHandler owns survey campaigns (one-off acquisitions such as a
// region's 2019 LiDAR flight). Campaigns carry many small tiles; the
// tightest tile around the point is the most precise read.
type CampaignHandler struct{}

func (*CampaignHandler) Name() string { return "campaign" }

func (*CampaignHandler) CanHandle(c *models.Collection) bool {
	return c.Type == models.CollectionCampaign
}

func (*CampaignHandler) Score(c *models.Collection, _, _ float64, now time.Time, w models.ScoreWeights) models.ScoreBreakdown {
	return ComputeBreakdown(c, now, w)
}

// SelectFile picks the smallest-footprint candidate; ties break on ref so
// the pick is reproducible.
func (*CampaignHandler) SelectFile(_ *models.Collection, candidates []*models.FileEntry, _, _ float64) *models.FileEntry {
	var best *models.FileEntry
	for _, f := range candidates {
		if best == nil {
			best = f
			continue
		}
		fa, ba := f.Bounds.Area(), best.Bounds.Area()
		if fa < ba || (fa == ba && f.Ref < best.Ref) {
			best = f
		}
	}
	return best
}

// ZoneHandler owns standing zone products (national or global grids
// refreshed on a cycle). Zones overlap coarsely; among covering files the
// finest resolution wins.
type ZoneHandler struct{}

func (*ZoneHandler) Name() string { return "zone" }

func (*ZoneHandler) CanHandle(c *models.Collection) bool {
	return c.Type == models.CollectionZone
}

func (*ZoneHandler) Score(c *models.Collection, _, _ float64, now time.Time, w models.ScoreWeights) models.ScoreBreakdown {
	return ComputeBreakdown(c, now, w)
}

func (*ZoneHandler) SelectFile(_ *models.Collection, candidates []*models.FileEntry, _, _ float64) *models.FileEntry {
	var best *models.FileEntry
	for _, f := range candidates {
		if best == nil {
			best = f
			continue
		}
		if f.ResolutionMeters < best.ResolutionMeters ||
			(f.ResolutionMeters == best.ResolutionMeters && f.Ref < best.Ref) {
			best = f
		}
	}
	return best
}

// GenericHandler is the catch-all for collections no specialized strategy
// claims. Register it last.
type GenericHandler struct{}

func (*GenericHandler) Name() string { return "generic" }

func (*GenericHandler) CanHandle(*models.Collection) bool { return true }

func (*GenericHandler) Score(c *models.Collection, _, _ float64, now time.Time, w models.ScoreWeights) models.ScoreBreakdown {
	return ComputeBreakdown(c, now, w)
}

// SelectFile takes the first candidate by ref order.
func (*GenericHandler) SelectFile(_ *models.Collection, candidates []*models.FileEntry, _, _ float64) *models.FileEntry {
	var best *models.FileEntry
	for _, f := range candidates {
		if best == nil || f.Ref < best.Ref {
			best = f
		}
	}
	return best
}
