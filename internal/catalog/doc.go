// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package catalog holds the in-memory collection catalog.
//
// The catalog is read-only after load. Hot reload replaces the entire
// snapshot behind an atomic pointer, so in-flight queries always see a
// consistent catalog and never a partially updated one.
//
// Collections whose file count reaches the configured threshold get a
// tiling index: a fixed-size degree grid mapping cells to the files whose
// bounds overlap them. Point lookups then test file bounds only within the
// point's cell instead of scanning every file.
package catalog
