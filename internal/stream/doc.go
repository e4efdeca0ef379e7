// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the canonical chunk model for streamed replies,
// the normalizer that maps wire events into it, and the state transitions
// that apply chunks to an in-flight message.
//
// The wire vocabulary (event names, JSON field names) stops at the
// normalizer. Everything downstream, including the state machine and the
// UI, sees only Chunk values.
package stream
