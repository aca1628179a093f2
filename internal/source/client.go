// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package source implements clients for external elevation APIs, the
// remote tiers of the fallback chain.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/altiplano-io/altiplano/internal/config"
)

// ErrNoData reports that the source answered but has no elevation for the
// point (open water, polar gaps). Routine; the chain advances.
var ErrNoData = errors.New("source has no data for the point")

// Client fetches a single-point elevation from one external API. The
// per-stage timeout arrives through ctx.
type Client interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (float64, error)
}

// maxResponseBytes bounds how much of a response body is read; elevation
// lookups are tiny and an unbounded read is a memory hazard.
const maxResponseBytes = 1 << 20

// Wire formats for SourceConfig.Format.
const (
	// FormatOpenElevation: `{"results": [{"elevation": ...}]}`.
	FormatOpenElevation = "open_elevation"

	// FormatOpenTopoData: the same results array plus a mandatory
	// `"status"` field that must be "OK".
	FormatOpenTopoData = "opentopodata"
)

// HTTPClient speaks one of the two supported wire formats, selected by
// the source's configured Format.
type HTTPClient struct {
	cfg    config.SourceConfig
	client *http.Client
}

// NewHTTPClient builds a client for one configured source. The
// http.Client carries no timeout of its own; the orchestrator's per-stage
// context is the single timeout authority.
func NewHTTPClient(cfg config.SourceConfig) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name implements Client.
func (c *HTTPClient) Name() string { return c.cfg.Name }

type response struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// decode parses a response body according to the configured wire format.
// A nil return with nil error means the source has no data for the point.
func (c *HTTPClient) decode(body []byte) (*float64, error) {
	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	switch c.cfg.Format {
	case FormatOpenTopoData:
		if parsed.Status != "OK" {
			if parsed.Error != "" {
				return nil, fmt.Errorf("status %q: %s", parsed.Status, parsed.Error)
			}
			return nil, fmt.Errorf("status %q", parsed.Status)
		}
	case FormatOpenElevation:
		// No status field in this shape.
	default:
		return nil, fmt.Errorf("unsupported wire format %q", c.cfg.Format)
	}

	if len(parsed.Results) == 0 || parsed.Results[0].Elevation == nil {
		return nil, nil
	}
	return parsed.Results[0].Elevation, nil
}

// Fetch implements Client.
func (c *HTTPClient) Fetch(ctx context.Context, lat, lon float64) (float64, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return 0, fmt.Errorf("source %s: bad url: %w", c.cfg.Name, err)
	}
	q := u.Query()
	q.Set("locations", fmt.Sprintf("%.6f,%.6f", lat, lon))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("source %s: build request: %w", c.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("source %s: unexpected status %d", c.cfg.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("source %s: read body: %w", c.cfg.Name, err)
	}

	elev, err := c.decode(body)
	if err != nil {
		return 0, fmt.Errorf("source %s: %w", c.cfg.Name, err)
	}
	if elev == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoData, c.cfg.Name)
	}
	return *elev, nil
}

var _ Client = (*HTTPClient)(nil)
