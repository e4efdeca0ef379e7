// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// =============================================================================
// CHUNK KINDS
// =============================================================================

// Kind classifies a normalized chunk.
type Kind string

const (
	// KindThinkingDelta carries a reasoning side-channel fragment.
	KindThinkingDelta Kind = "thinking_delta"

	// KindTextDelta carries a visible reply fragment.
	KindTextDelta Kind = "text_delta"

	// KindStatusUpdate is advisory progress text. It never changes
	// message state.
	KindStatusUpdate Kind = "status_update"

	// KindToolStarted marks a tool invocation as in flight.
	KindToolStarted Kind = "tool_started"

	// KindToolFinished marks a tool invocation as complete.
	KindToolFinished Kind = "tool_finished"

	// KindDone terminates a reply successfully.
	KindDone Kind = "done"

	// KindFailed terminates a reply with an error.
	KindFailed Kind = "failed"

	// KindUnknown wraps an unrecognized wire event. The raw name rides in
	// Chunk.UnknownName; consumers treat it as a no-op.
	KindUnknown Kind = "unknown"
)

// IsTerminal reports whether a chunk of this kind ends the reply.
func (k Kind) IsTerminal() bool {
	return k == KindDone || k == KindFailed
}

// =============================================================================
// CHUNK TYPE
// =============================================================================

// Chunk is the normalized unit of streamed information.
//
// Exactly one of IncrementalText, FinalText, or ErrorMessage is meaningful
// for any given kind: IncrementalText for the delta kinds, FinalText for
// done, ErrorMessage for failed.
type Chunk struct {
	Kind Kind

	// UnknownName holds the raw wire event name when Kind is KindUnknown.
	UnknownName string

	// IncrementalText is the fragment to append for delta kinds, and the
	// advisory text for status updates.
	IncrementalText string

	// FinalText is the full reply text on done, used only as a fallback
	// when no deltas accumulated.
	FinalText string

	// ToolLabel is set for tool_started and tool_finished.
	ToolLabel string

	// Identifiers carried by the done frame.
	ConversationID string
	ProviderID     string

	// ErrorMessage is set for failed.
	ErrorMessage string
}
