// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helper functions shared across courier.
//
// It contains rune-safe string truncation for display, numeric conversion
// shortcuts, and a crash-safe atomic file writer used by the configuration
// layer.
package util
