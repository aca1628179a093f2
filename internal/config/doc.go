// Altiplano - Multi-Source Elevation Resolution Service
// Copyright 2026 Altiplano Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/altiplano-io/altiplano

// Package config loads and validates service configuration through three
// koanf layers: built-in defaults, an optional YAML file, and ALTIPLANO_*
// environment variables, in ascending priority.
package config
