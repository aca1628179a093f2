// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/altiplano-io/altiplano/internal/config"
)

func newTestClient(t *testing.T, format string, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.SourceConfig{Name: "test-source", URL: srv.URL, Format: format})
}

func TestFetch_OpenTopoDataFormat(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenTopoData, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("locations"); got != "-36.850000,174.760000" {
			t.Errorf("locations = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"elevation":196.0,"location":{"lat":-36.85,"lng":174.76}}]}`))
	})

	got, err := c.Fetch(context.Background(), -36.85, 174.76)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != 196.0 {
		t.Errorf("elevation = %v, want 196.0", got)
	}
}

func TestFetch_OpenElevationFormat(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenElevation, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"latitude":27.98,"longitude":86.92,"elevation":8752}]}`))
	})

	got, err := c.Fetch(context.Background(), 27.98, 86.92)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != 8752 {
		t.Errorf("elevation = %v, want 8752", got)
	}
}

// TestFetch_FormatSelectsParsing pins the format field to actual behavior:
// the same status-less body is valid open_elevation but an error under
// opentopodata, which requires status "OK".
func TestFetch_FormatSelectsParsing(t *testing.T) {
	t.Parallel()

	body := `{"results":[{"elevation":12.5}]}`

	lenient := newTestClient(t, FormatOpenElevation, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	if got, err := lenient.Fetch(context.Background(), 1, 1); err != nil || got != 12.5 {
		t.Errorf("open_elevation: got %v, %v", got, err)
	}

	strict := newTestClient(t, FormatOpenTopoData, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	if _, err := strict.Fetch(context.Background(), 1, 1); err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("opentopodata without status: err = %v, want a non-ErrNoData failure", err)
	}
}

func TestFetch_UnknownFormat(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "geojson", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"elevation":1}]}`))
	})
	if _, err := c.Fetch(context.Background(), 0, 0); err == nil {
		t.Error("expected error for unsupported wire format")
	}
}

func TestFetch_NullElevationIsNoData(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenElevation, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"elevation":null}]}`))
	})

	_, err := c.Fetch(context.Background(), 0, -140)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenTopoData, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"INVALID_REQUEST","error":"bad locations","results":[]}`))
	})

	if _, err := c.Fetch(context.Background(), 0, 0); err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want a non-ErrNoData failure", err)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenTopoData, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.Fetch(context.Background(), 0, 0); err == nil {
		t.Error("expected error on 502")
	}
}

func TestFetch_ContextTimeout(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, FormatOpenTopoData, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx, 0, 0)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch did not honor context deadline, took %v", elapsed)
	}
}
