// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package raster defines the boundary to georeferenced file decoding. The
// resolution core never decodes pixels itself; it hands an opaque file ref
// and a coordinate to a Reader and interprets the outcome.
package raster

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotCovered reports that the file's data does not cover the point
// (nodata pixel or out-of-grid coordinate). Routine; the resolver advances
// to its next candidate.
var ErrNotCovered = errors.New("raster does not cover the point")

// IOError wraps a storage or decode failure. Treated as a per-candidate
// miss, never as a query failure.
type IOError struct {
	Ref string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("raster read %s: %v", e.Ref, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Reader extracts the elevation at a coordinate from one raster file.
// Implementations block on storage I/O and must honor ctx cancellation.
type Reader interface {
	Read(ctx context.Context, fileRef string, lat, lon float64) (float64, error)
}

// StaticReader serves elevations from an in-memory table keyed by file
// ref. Used in development mode and tests; real deployments plug in a
// GDAL-backed sidecar or an object-storage reader.
type StaticReader struct {
	mu     sync.RWMutex
	values map[string]float64
	errs   map[string]error
}

// NewStaticReader creates an empty static reader.
func NewStaticReader() *StaticReader {
	return &StaticReader{
		values: make(map[string]float64),
		errs:   make(map[string]error),
	}
}

// Set maps a file ref to a fixed elevation.
func (r *StaticReader) Set(ref string, elevation float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[ref] = elevation
	delete(r.errs, ref)
}

// Fail makes reads of the given ref return err.
func (r *StaticReader) Fail(ref string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[ref] = err
	delete(r.values, ref)
}

// Read returns the configured value, the configured error, or
// ErrNotCovered for unknown refs.
func (r *StaticReader) Read(ctx context.Context, fileRef string, _, _ float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err, ok := r.errs[fileRef]; ok {
		return 0, err
	}
	if v, ok := r.values[fileRef]; ok {
		return v, nil
	}
	return 0, ErrNotCovered
}
