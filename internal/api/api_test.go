// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/altiplano-io/altiplano/internal/catalog"
	"github.com/altiplano-io/altiplano/internal/config"
	"github.com/altiplano-io/altiplano/internal/fallback"
	"github.com/altiplano-io/altiplano/internal/handler"
	"github.com/altiplano-io/altiplano/internal/models"
	"github.com/altiplano-io/altiplano/internal/raster"
	"github.com/altiplano-io/altiplano/internal/resolver"
)

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) Reload(_ context.Context) error {
	f.calls++
	return f.err
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		ListenAddr:      ":0",
		CORSOrigins:     []string{"*"},
		RateLimitPerMin: 10000,
	}
}

// newTestRouter builds a router over a one-collection catalog with a
// known elevation at (-36.5, 174.5).
func newTestRouter(t *testing.T, reloader Reloader) http.Handler {
	t.Helper()

	store := catalog.NewStore(500, 0.02)
	store.Replace([]models.Collection{{
		ID:           "nz-auckland",
		ProviderTier: models.TierGovernment,
		CaptureYear:  2024,
		Bounds:       models.BoundingBox{MinLat: -37, MinLon: 174, MaxLat: -36, MaxLon: 175},
		Files: []models.FileEntry{{
			Ref:              "auckland.tif",
			Bounds:           models.BoundingBox{MinLat: -37, MinLon: 174, MaxLat: -36, MaxLon: 175},
			ResolutionMeters: 1,
		}},
	}})
	reader := raster.NewStaticReader()
	reader.Set("auckland.tif", 41.5)
	r := resolver.New(store, handler.DefaultRegistry(), reader, models.DefaultScoreWeights())
	orch := fallback.New(fallback.NewLocalStage(r, 100*time.Millisecond))

	if reloader == nil {
		reloader = &fakeReloader{}
	}
	return NewRouter(testServerConfig(), NewHandler(orch, store, reloader))
}

func doGet(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v\nbody: %s", path, err, rec.Body.String())
	}
	return rec, body
}

func TestElevationHit(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	rec, body := doGet(t, router, "/api/v1/elevation?lat=-36.5&lon=174.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !body.Success {
		t.Fatalf("success = false: %+v", body.Error)
	}

	raw, _ := json.Marshal(body.Data)
	var result models.ElevationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Elevation == nil || *result.Elevation != 41.5 {
		t.Errorf("elevation = %v, want 41.5", result.Elevation)
	}
	if result.SourceUsed != "local:nz-auckland" {
		t.Errorf("source_used = %q", result.SourceUsed)
	}
}

func TestElevationMissReturnsNullResult(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	rec, body := doGet(t, router, "/api/v1/elevation?lat=10&lon=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a data miss", rec.Code)
	}
	raw, _ := json.Marshal(body.Data)
	var result models.ElevationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Elevation != nil {
		t.Errorf("elevation = %v, want null", *result.Elevation)
	}
	if result.SourceUsed != "none" {
		t.Errorf("source_used = %q, want none", result.SourceUsed)
	}
}

func TestElevationValidation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	cases := []struct {
		name string
		path string
	}{
		{"missing lat", "/api/v1/elevation?lon=174.5"},
		{"missing lon", "/api/v1/elevation?lat=-36.5"},
		{"non numeric", "/api/v1/elevation?lat=abc&lon=174.5"},
		{"lat out of range", "/api/v1/elevation?lat=95&lon=174.5"},
		{"lon out of range", "/api/v1/elevation?lat=-36.5&lon=181"},
		{"nan", "/api/v1/elevation?lat=NaN&lon=174.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, body := doGet(t, router, tc.path)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body.Error == nil || body.Error.Code != CodeInvalidRequest {
				t.Errorf("error = %+v, want code %s", body.Error, CodeInvalidRequest)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	rec, body := doGet(t, router, "/api/v1/health/live")
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("live probe: status = %d, success = %v", rec.Code, body.Success)
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	rec, _ := doGet(t, router, "/api/v1/health/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready probe: status = %d", rec.Code)
	}
}

func TestHealthReadyEmptyCatalog(t *testing.T) {
	t.Parallel()

	store := catalog.NewStore(500, 0.02)
	store.Replace(nil)
	r := resolver.New(store, handler.DefaultRegistry(), raster.NewStaticReader(), models.DefaultScoreWeights())
	orch := fallback.New(fallback.NewLocalStage(r, 100*time.Millisecond))
	router := NewRouter(testServerConfig(), NewHandler(orch, store, &fakeReloader{}))

	rec, body := doGet(t, router, "/api/v1/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body.Error == nil || body.Error.Code != CodeNotReady {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestBreakersEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	rec, body := doGet(t, router, "/api/v1/status/breakers")
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, body.Success)
	}
}

func TestCatalogReload(t *testing.T) {
	t.Parallel()

	reloader := &fakeReloader{}
	router := newTestRouter(t, reloader)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if reloader.calls != 1 {
		t.Errorf("reloader called %d times, want 1", reloader.calls)
	}
}

func TestCatalogReloadFailure(t *testing.T) {
	t.Parallel()

	reloader := &fakeReloader{err: errors.New("catalog file unreadable")}
	router := newTestRouter(t, reloader)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set(requestIDHeader, "test-id-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "test-id-123" {
		t.Errorf("request id = %q, want echo of supplied id", got)
	}

	// A request without one gets a generated id.
	rec2, _ := doGet(t, router, "/api/v1/health/live")
	if rec2.Header().Get(requestIDHeader) == "" {
		t.Error("no request id generated")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint status = %d", rec.Code)
	}
}
