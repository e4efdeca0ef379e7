// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/courier-tui/internal/sse"
)

// Wire event names produced by the backend.
const (
	eventAssistant = "assistant"
	eventReasoning = "reasoning"
	eventStatus    = "status"
	eventToolStart = "tool_start"
	eventToolEnd   = "tool_end"
	eventMeta      = "meta"
	eventDone      = "done"
	eventError     = "error"
)

// Some backends prefix the first reasoning fragment with a display label.
const reasoningPrefix = "Thinking:"

// wirePayload is the superset of JSON fields any event may carry.
// Delta is a pointer so an absent field is distinguishable from an
// explicitly empty fragment.
type wirePayload struct {
	Delta          *string `json:"delta"`
	Text           string  `json:"text"`
	Label          string  `json:"label"`
	Name           string  `json:"name"`
	Reply          string  `json:"reply"`
	ConversationID string  `json:"conversation_id"`
	Provider       string  `json:"provider"`
	Error          string  `json:"error"`
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer converts wire frames into canonical chunks. It is stateful:
// the reasoning-prefix strip applies only to the first reasoning fragment
// of a stream, so use one Normalizer per stream session.
type Normalizer struct {
	reasoningSeen bool
}

// NewNormalizer creates a normalizer for a single stream session.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps a parsed frame to a canonical chunk. The second return is
// false when the frame has no observable effect (meta events, undecodable
// payloads) and should be dropped.
func (n *Normalizer) Normalize(frame *sse.Frame) (Chunk, bool) {
	var payload wirePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		// The parser guaranteed valid JSON but not the expected shape.
		return Chunk{}, false
	}

	switch frame.Event {
	case eventAssistant:
		return Chunk{
			Kind:            KindTextDelta,
			IncrementalText: deltaOrText(payload.Delta, payload.Text),
		}, true

	case eventReasoning:
		text := deltaOrText(payload.Delta, payload.Text)
		if !n.reasoningSeen {
			n.reasoningSeen = true
			text = stripReasoningPrefix(text)
		}
		return Chunk{
			Kind:            KindThinkingDelta,
			IncrementalText: text,
		}, true

	case eventStatus:
		return Chunk{
			Kind:            KindStatusUpdate,
			IncrementalText: payload.Text,
		}, true

	case eventToolStart:
		return Chunk{
			Kind:      KindToolStarted,
			ToolLabel: toolLabel(payload),
		}, true

	case eventToolEnd:
		return Chunk{
			Kind:      KindToolFinished,
			ToolLabel: toolLabel(payload),
		}, true

	case eventMeta:
		return Chunk{}, false

	case eventDone:
		return Chunk{
			Kind:           KindDone,
			FinalText:      payload.Reply,
			ConversationID: payload.ConversationID,
			ProviderID:     payload.Provider,
		}, true

	case eventError:
		msg := payload.Error
		if msg == "" {
			msg = payload.Text
		}
		return Chunk{
			Kind:         KindFailed,
			ErrorMessage: msg,
		}, true

	default:
		return Chunk{
			Kind:        KindUnknown,
			UnknownName: frame.Event,
		}, true
	}
}

// =============================================================================
// FIELD RESOLUTION
// =============================================================================

// deltaOrText selects the text fragment for a delta event.
//
// RELIABILITY: the incremental field always wins when present, even when
// empty. Falling back to the cumulative text field while deltas are flowing
// would re-append text that was already applied.
func deltaOrText(delta *string, text string) string {
	if delta != nil {
		return *delta
	}
	return text
}

// toolLabel resolves the display label for a tool event.
func toolLabel(p wirePayload) string {
	if p.Label != "" {
		return p.Label
	}
	if p.Name != "" {
		return p.Name
	}
	return "tool"
}

// stripReasoningPrefix drops the display label some backends prepend to the
// opening reasoning fragment. The label may arrive bare ("Thinking:") or
// wrapped in bold markers ("**Thinking:**").
func stripReasoningPrefix(text string) string {
	s, marked := strings.CutPrefix(text, "**")
	if !strings.HasPrefix(s, reasoningPrefix) {
		return text
	}
	s = s[len(reasoningPrefix):]
	if marked {
		s = strings.TrimPrefix(s, "**")
	}
	return strings.TrimLeft(s, " ")
}
