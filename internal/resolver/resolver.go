// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package resolver implements local elevation resolution: candidate
// collection lookup, weighted scoring, confidence thresholding, file
// selection and raster extraction.
//
// The candidate policy is confidence thresholding: a top score of 0.8 or
// better yields one candidate, 0.5 to 0.8 two, below 0.5 three. The
// resolver walks the candidates in rank order and the first successful
// raster read wins, so a weakly-scored catalog still degrades gracefully
// before the remote fallback chain engages.
package resolver

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/altiplano-io/altiplano/internal/catalog"
	"github.com/altiplano-io/altiplano/internal/handler"
	"github.com/altiplano-io/altiplano/internal/logging"
	"github.com/altiplano-io/altiplano/internal/metrics"
	"github.com/altiplano-io/altiplano/internal/models"
	"github.com/altiplano-io/altiplano/internal/raster"
)

// Confidence thresholds for candidate count selection.
const (
	highConfidence = 0.8
	midConfidence  = 0.5
)

// ErrExhausted reports that every local candidate missed. The fallback
// chain treats it as a routine advance signal.
var ErrExhausted = errors.New("all local candidates exhausted")

// LocalResult is a successful local extraction with its provenance.
type LocalResult struct {
	Elevation        float64
	CollectionID     string
	FileRef          string
	ResolutionMeters float64
}

// Resolver ranks covering collections and extracts the best elevation.
// Safe for concurrent use; all state is read-only or snapshot-swapped.
type Resolver struct {
	store    *catalog.Store
	registry *handler.Registry
	reader   raster.Reader
	weights  models.ScoreWeights

	// now is injectable for deterministic temporal scoring in tests.
	now func() time.Time
}

// New creates a resolver over the given catalog, strategy registry and
// raster reader.
func New(store *catalog.Store, registry *handler.Registry, reader raster.Reader, weights models.ScoreWeights) *Resolver {
	return &Resolver{
		store:    store,
		registry: registry,
		reader:   reader,
		weights:  weights,
		now:      time.Now,
	}
}

// SetClock overrides the temporal-scoring clock. Tests only.
func (r *Resolver) SetClock(now func() time.Time) {
	r.now = now
}

// Rank validates the coordinate and returns the confidence-thresholded
// candidate list, best first. Ranking is deterministic: equal totals break
// on collection id.
func (r *Resolver) Rank(lat, lon float64) ([]models.CandidateResult, error) {
	if err := models.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}

	covering := r.store.FindCollectionsContaining(lat, lon)
	metrics.ResolveCandidates.Observe(float64(len(covering)))
	if len(covering) == 0 {
		return nil, nil
	}

	now := r.now()
	type scored struct {
		col   *models.Collection
		h     handler.Handler
		score models.ScoreBreakdown
	}
	ranked := make([]scored, 0, len(covering))
	for _, c := range covering {
		h := r.registry.For(c)
		if h == nil {
			continue
		}
		ranked = append(ranked, scored{col: c, h: h, score: h.Score(c, lat, lon, now, r.weights)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score.Total != ranked[j].score.Total {
			return ranked[i].score.Total > ranked[j].score.Total
		}
		return ranked[i].col.ID < ranked[j].col.ID
	})

	if len(ranked) == 0 {
		return nil, nil
	}

	limit := candidateLimit(ranked[0].score.Total)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]models.CandidateResult, 0, len(ranked))
	for _, s := range ranked {
		candidates := r.store.CandidateFiles(s.col.ID, lat, lon)
		f := s.h.SelectFile(s.col, candidates, lat, lon)
		if f == nil {
			// Collection bounds admitted the point but no file covers
			// it. Keep the entry with an empty ref so diagnostics show
			// the false positive; extraction skips it.
			out = append(out, models.CandidateResult{
				CollectionID: s.col.ID,
				Score:        s.score,
			})
			continue
		}
		out = append(out, models.CandidateResult{
			CollectionID:     s.col.ID,
			FileRef:          f.Ref,
			Score:            s.score,
			ResolutionMeters: f.ResolutionMeters,
		})
	}
	return out, nil
}

// candidateLimit applies confidence thresholding to the top score.
func candidateLimit(topScore float64) int {
	switch {
	case topScore >= highConfidence:
		return 1
	case topScore >= midConfidence:
		return 2
	default:
		return 3
	}
}

// Resolve ranks candidates and extracts the first readable elevation.
// A raster miss or I/O error advances to the next candidate; only
// exhausting the list is a local miss (ErrExhausted). Malformed
// coordinates return a *models.ValidationError.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (*LocalResult, error) {
	start := time.Now()

	candidates, err := r.Rank(lat, lon)
	if err != nil {
		metrics.ResolveDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
		return nil, err
	}
	if len(candidates) == 0 {
		metrics.ResolveDuration.WithLabelValues("miss").Observe(time.Since(start).Seconds())
		return nil, catalog.ErrNoCoverage
	}

	for _, cand := range candidates {
		if cand.FileRef == "" {
			metrics.ExtractionMisses.WithLabelValues("no_file").Inc()
			continue
		}
		elev, err := r.reader.Read(ctx, cand.FileRef, lat, lon)
		switch {
		case err == nil:
			metrics.ResolveDuration.WithLabelValues("hit").Observe(time.Since(start).Seconds())
			return &LocalResult{
				Elevation:        elev,
				CollectionID:     cand.CollectionID,
				FileRef:          cand.FileRef,
				ResolutionMeters: cand.ResolutionMeters,
			}, nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			metrics.ResolveDuration.WithLabelValues("miss").Observe(time.Since(start).Seconds())
			return nil, err
		case errors.Is(err, raster.ErrNotCovered):
			metrics.ExtractionMisses.WithLabelValues("not_covered").Inc()
		default:
			metrics.ExtractionMisses.WithLabelValues("io_error").Inc()
			logging.Warn().
				Str("collection", cand.CollectionID).
				Str("file", cand.FileRef).
				Err(err).
				Msg("raster read failed, advancing to next candidate")
		}
	}

	metrics.ResolveDuration.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	return nil, ErrExhausted
}
