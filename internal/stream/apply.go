// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"github.com/jeranaias/courier-tui/internal/model"
)

// =============================================================================
// STATE TRANSITIONS
// =============================================================================

// Apply mutates msg according to one chunk and reports whether the chunk
// was terminal.
//
// Done messages are never mutated again: the transport may deliver trailing
// frames after a terminal chunk, and those must be ignored here rather than
// filtered by every caller.
func Apply(msg *model.Message, c Chunk) (terminal bool) {
	if msg.IsDone() {
		return false
	}

	switch c.Kind {
	case KindThinkingDelta:
		msg.AppendReasoning(c.IncrementalText)
		msg.Phase = model.PhaseThinking

	case KindTextDelta:
		msg.AppendContent(c.IncrementalText)
		msg.Phase = model.PhaseResponding

	case KindToolStarted:
		msg.StartTool(c.ToolLabel)

	case KindToolFinished:
		msg.FinishTool(c.ToolLabel)

	case KindDone:
		msg.ClearActiveTools()
		if !msg.HasContent() && c.FinalText != "" {
			msg.SetContent(strings.TrimSpace(c.FinalText))
		}
		if c.ProviderID != "" {
			msg.ProviderID = c.ProviderID
		}
		if c.ConversationID != "" {
			msg.ConversationID = c.ConversationID
		}
		msg.Phase = model.PhaseDone
		return true

	case KindFailed:
		// Error text takes priority over partial content.
		msg.ClearActiveTools()
		msg.SetContent(c.ErrorMessage)
		msg.Failed = true
		msg.Phase = model.PhaseDone
		return true

	case KindStatusUpdate, KindUnknown:
		// Advisory or forward-compat events: no state change.
	}

	return false
}
