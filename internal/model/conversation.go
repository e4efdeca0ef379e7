// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the ordered message list for one conversation.
//
// The conversation does not synchronize itself; the session coordinator owns
// it and serializes all mutation.
type Conversation struct {
	// ID is a locally generated identifier, assigned at creation. The
	// backend's own conversation id is tracked separately by the session
	// coordinator once the first done chunk carries it.
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	Messages []*Message
}

// NewConversation creates an empty conversation with a fresh local id.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewLocalID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Add appends a message to the conversation.
func (c *Conversation) Add(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTitle()
}

// Last returns the most recent message, or nil if empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty reports whether the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Replace swaps the whole message list for a freshly fetched set. Used by
// history load and the background refresh poller.
func (c *Conversation) Replace(msgs []*Message) {
	c.Messages = msgs
	c.UpdatedAt = time.Now()
	c.Title = ""
	c.updateTitle()
}

// Snapshots returns value copies of all messages in order.
func (c *Conversation) Snapshots() []Snapshot {
	snaps := make([]Snapshot, len(c.Messages))
	for i, msg := range c.Messages {
		snaps[i] = msg.Snapshot()
	}
	return snaps
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if not set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle manually sets the conversation title.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now()
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// NewLocalID creates an identifier for objects the backend has not named
// yet (sessions, unsaved conversations).
func NewLocalID() string {
	return uuid.New().String()
}
