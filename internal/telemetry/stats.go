// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records local stream statistics: time to first chunk,
// per-kind chunk counts, and skipped malformed frames.
//
// Everything here stays on the local machine. Nothing is transmitted.
package telemetry

import (
	"sync"
	"time"

	"github.com/jeranaias/courier-tui/internal/stream"
)

// =============================================================================
// STREAM STATS
// =============================================================================

// StreamStats accumulates counters for one stream session. Safe for
// concurrent use; the chunk observer and the malformed-frame hook fire
// from different goroutines.
type StreamStats struct {
	mu sync.Mutex

	startedAt    time.Time
	firstChunkAt time.Time

	textChunks      int
	thinkingChunks  int
	toolEvents      int
	malformedFrames int

	terminal stream.Kind
	provider string
}

// NewStreamStats starts a stats collector; the clock for time-to-first-
// chunk starts now.
func NewStreamStats() *StreamStats {
	return &StreamStats{startedAt: time.Now()}
}

// RecordChunk counts one applied chunk.
func (s *StreamStats) RecordChunk(c stream.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.firstChunkAt.IsZero() {
		s.firstChunkAt = time.Now()
	}

	switch c.Kind {
	case stream.KindTextDelta:
		s.textChunks++
	case stream.KindThinkingDelta:
		s.thinkingChunks++
	case stream.KindToolStarted, stream.KindToolFinished:
		s.toolEvents++
	case stream.KindDone:
		s.terminal = stream.KindDone
		s.provider = c.ProviderID
	case stream.KindFailed:
		s.terminal = stream.KindFailed
	}
}

// RecordMalformedFrame counts one skipped undecodable frame.
func (s *StreamStats) RecordMalformedFrame() {
	s.mu.Lock()
	s.malformedFrames++
	s.mu.Unlock()
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary is a completed session's statistics, ready to persist.
type Summary struct {
	StartedAt       time.Time
	TimeToFirst     time.Duration // zero when no chunk ever arrived
	TextChunks      int
	ThinkingChunks  int
	ToolEvents      int
	MalformedFrames int
	Terminal        string // "done", "failed", or "" for implicit/cancelled
	Provider        string
}

// Summary captures the current counters.
func (s *StreamStats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ttf time.Duration
	if !s.firstChunkAt.IsZero() {
		ttf = s.firstChunkAt.Sub(s.startedAt)
	}

	return Summary{
		StartedAt:       s.startedAt,
		TimeToFirst:     ttf,
		TextChunks:      s.textChunks,
		ThinkingChunks:  s.thinkingChunks,
		ToolEvents:      s.toolEvents,
		MalformedFrames: s.malformedFrames,
		Terminal:        string(s.terminal),
		Provider:        s.provider,
	}
}
