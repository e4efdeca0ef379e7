// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"sync"

	"github.com/jeranaias/courier-tui/internal/stream"
)

// =============================================================================
// RECORDER
// =============================================================================

// Recorder feeds chunk and malformed-frame events into per-session stats
// and persists each session's summary when its terminal chunk arrives.
// Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	store   *Store
	current *StreamStats
}

// NewRecorder creates a recorder writing summaries to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{
		store:   store,
		current: NewStreamStats(),
	}
}

// RecordChunk counts one applied chunk. A terminal chunk closes out the
// session: its summary is saved and a fresh stats window begins.
func (r *Recorder) RecordChunk(c stream.Chunk) {
	r.mu.Lock()
	stats := r.current
	if c.Kind.IsTerminal() {
		r.current = NewStreamStats()
	}
	r.mu.Unlock()

	stats.RecordChunk(c)
	if c.Kind.IsTerminal() && r.store != nil {
		// Persistence is best-effort; a full disk never breaks the chat.
		r.store.Save(stats.Summary())
	}
}

// RecordMalformedFrame counts one skipped undecodable frame against the
// current session.
func (r *Recorder) RecordMalformedFrame() {
	r.mu.Lock()
	stats := r.current
	r.mu.Unlock()
	stats.RecordMalformedFrame()
}
