// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package models defines the core data types shared across the resolution
// pipeline: spatial collections and their files, score breakdowns produced
// by the resolver, and the elevation result returned to callers.
//
// All geographic bounds are normalized into a single BoundingBox type at
// catalog-load time. Downstream code never branches on bounds
// representation.
package models
