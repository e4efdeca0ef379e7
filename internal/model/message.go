// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// PHASE TYPE
// =============================================================================

// Phase is the lifecycle state of an in-flight assistant message.
type Phase string

const (
	// PhaseThinking means the reply has started but no visible text has
	// arrived yet (reasoning side-channel may be streaming).
	PhaseThinking Phase = "thinking"

	// PhaseResponding means visible reply text is streaming in.
	PhaseResponding Phase = "responding"

	// PhaseDone is terminal. Once reached, no further chunks mutate the
	// message; trailing frames from the transport are ignored.
	PhaseDone Phase = "done"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
//
// Content and reasoning are accumulated in builders while streaming.
// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming.
type Message struct {
	// Identity
	ID        string
	Role      Role
	Timestamp time.Time

	// Lifecycle
	Phase Phase

	// Tool activity for the in-flight turn.
	// ActiveTools holds labels of tools currently running; CompletedTools
	// is ordered and de-duplicated.
	ActiveTools    map[string]struct{}
	CompletedTools []string

	// Set once the terminal done chunk arrives.
	ProviderID     string
	ConversationID string

	// Failed marks a reply that ended with an error; its content is the
	// human-readable failure message rather than assistant text.
	Failed bool

	content   strings.Builder
	reasoning strings.Builder
}

// NewUserMessage creates a user message. User messages are complete on
// creation, so their phase is done immediately.
func NewUserMessage(content string) *Message {
	m := &Message{
		ID:          uuid.New().String(),
		Role:        RoleUser,
		Timestamp:   time.Now(),
		Phase:       PhaseDone,
		ActiveTools: make(map[string]struct{}),
	}
	m.content.WriteString(content)
	return m
}

// NewAssistantMessage creates an empty assistant message in the thinking
// phase, ready to receive streamed chunks.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		Phase:       PhaseThinking,
		ActiveTools: make(map[string]struct{}),
	}
}

// NewHistoryMessage creates a completed message from a fetched history pair.
func NewHistoryMessage(role Role, content string) *Message {
	m := &Message{
		ID:          uuid.New().String(),
		Role:        role,
		Timestamp:   time.Now(),
		Phase:       PhaseDone,
		ActiveTools: make(map[string]struct{}),
	}
	m.content.WriteString(content)
	return m
}

// =============================================================================
// CONTENT ACCESS
// =============================================================================

// Content returns the accumulated visible text.
func (m *Message) Content() string {
	return m.content.String()
}

// Reasoning returns the accumulated reasoning side-channel text.
func (m *Message) Reasoning() string {
	return m.reasoning.String()
}

// HasContent reports whether any visible text has accumulated.
func (m *Message) HasContent() bool {
	return m.content.Len() > 0
}

// AppendContent appends a visible text fragment.
func (m *Message) AppendContent(fragment string) {
	m.content.WriteString(fragment)
}

// AppendReasoning appends a reasoning text fragment.
func (m *Message) AppendReasoning(fragment string) {
	m.reasoning.WriteString(fragment)
}

// SetContent replaces the accumulated visible text.
func (m *Message) SetContent(content string) {
	m.content.Reset()
	m.content.WriteString(content)
}

// IsDone reports whether the message has reached its terminal phase.
func (m *Message) IsDone() bool {
	return m.Phase == PhaseDone
}

// =============================================================================
// TOOL TRACKING
// =============================================================================

// StartTool records a tool as in-flight. Adding the same label twice is a
// no-op.
func (m *Message) StartTool(label string) {
	if label == "" {
		return
	}
	m.ActiveTools[label] = struct{}{}
}

// FinishTool removes a tool from the in-flight set and records it as
// completed exactly once. Finishing a tool that never started still lands
// it in CompletedTools.
func (m *Message) FinishTool(label string) {
	if label == "" {
		return
	}
	delete(m.ActiveTools, label)
	for _, done := range m.CompletedTools {
		if done == label {
			return
		}
	}
	m.CompletedTools = append(m.CompletedTools, label)
}

// ClearActiveTools drops all in-flight tool labels.
func (m *Message) ClearActiveTools() {
	for label := range m.ActiveTools {
		delete(m.ActiveTools, label)
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot is an immutable value copy of a message, safe to hand across
// goroutine boundaries to the UI.
type Snapshot struct {
	ID             string
	Role           Role
	Timestamp      time.Time
	Phase          Phase
	Content        string
	Reasoning      string
	ActiveTools    []string
	CompletedTools []string
	ProviderID     string
	ConversationID string
	Failed         bool
}

// Snapshot returns a value copy of the message. The caller must hold
// whatever lock guards the message.
func (m *Message) Snapshot() Snapshot {
	active := make([]string, 0, len(m.ActiveTools))
	for label := range m.ActiveTools {
		active = append(active, label)
	}
	completed := make([]string, len(m.CompletedTools))
	copy(completed, m.CompletedTools)

	return Snapshot{
		ID:             m.ID,
		Role:           m.Role,
		Timestamp:      m.Timestamp,
		Phase:          m.Phase,
		Content:        m.content.String(),
		Reasoning:      m.reasoning.String(),
		ActiveTools:    active,
		CompletedTools: completed,
		ProviderID:     m.ProviderID,
		ConversationID: m.ConversationID,
		Failed:         m.Failed,
	}
}

// Preview returns a truncated single-line preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	content := strings.ReplaceAll(m.content.String(), "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
