// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage_DoneImmediately(t *testing.T) {
	m := NewUserMessage("hello")

	if m.Role != RoleUser {
		t.Errorf("Role = %q, want %q", m.Role, RoleUser)
	}
	if m.Phase != PhaseDone {
		t.Errorf("Phase = %q, want %q", m.Phase, PhaseDone)
	}
	if m.Content() != "hello" {
		t.Errorf("Content = %q, want %q", m.Content(), "hello")
	}
	if m.ID == "" {
		t.Error("ID should not be empty")
	}
}

func TestNewAssistantMessage_StartsThinking(t *testing.T) {
	m := NewAssistantMessage()

	if m.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", m.Role, RoleAssistant)
	}
	if m.Phase != PhaseThinking {
		t.Errorf("Phase = %q, want %q", m.Phase, PhaseThinking)
	}
	if m.HasContent() {
		t.Error("new assistant message should have no content")
	}
}

func TestMessage_AppendAccumulates(t *testing.T) {
	m := NewAssistantMessage()
	m.AppendReasoning("a")
	m.AppendReasoning("b")
	m.AppendContent("x")
	m.AppendContent("y")

	if m.Reasoning() != "ab" {
		t.Errorf("Reasoning = %q, want %q", m.Reasoning(), "ab")
	}
	if m.Content() != "xy" {
		t.Errorf("Content = %q, want %q", m.Content(), "xy")
	}
}

func TestMessage_ToolIdempotence(t *testing.T) {
	m := NewAssistantMessage()

	m.StartTool("web_search")
	m.StartTool("web_search")
	if len(m.ActiveTools) != 1 {
		t.Errorf("ActiveTools = %d entries, want 1", len(m.ActiveTools))
	}

	m.FinishTool("web_search")
	m.FinishTool("web_search")
	if len(m.ActiveTools) != 0 {
		t.Errorf("ActiveTools = %d entries after finish, want 0", len(m.ActiveTools))
	}
	if len(m.CompletedTools) != 1 || m.CompletedTools[0] != "web_search" {
		t.Errorf("CompletedTools = %v, want [web_search]", m.CompletedTools)
	}
}

func TestMessage_FinishToolNeverStarted(t *testing.T) {
	m := NewAssistantMessage()

	m.FinishTool("calculator")
	if len(m.CompletedTools) != 1 || m.CompletedTools[0] != "calculator" {
		t.Errorf("CompletedTools = %v, want [calculator]", m.CompletedTools)
	}
}

func TestMessage_Snapshot(t *testing.T) {
	m := NewAssistantMessage()
	m.AppendContent("partial")
	m.StartTool("web_search")
	m.FinishTool("fetch")

	snap := m.Snapshot()
	if snap.Content != "partial" {
		t.Errorf("snapshot Content = %q, want %q", snap.Content, "partial")
	}
	if len(snap.ActiveTools) != 1 || snap.ActiveTools[0] != "web_search" {
		t.Errorf("snapshot ActiveTools = %v, want [web_search]", snap.ActiveTools)
	}
	if len(snap.CompletedTools) != 1 || snap.CompletedTools[0] != "fetch" {
		t.Errorf("snapshot CompletedTools = %v, want [fetch]", snap.CompletedTools)
	}

	// Snapshot is a copy: mutating the message does not change it.
	m.AppendContent(" more")
	if snap.Content != "partial" {
		t.Error("snapshot should not observe later mutation")
	}
}

func TestMessage_Preview(t *testing.T) {
	m := NewUserMessage("line one\nline two that goes on for quite a while here")
	p := m.Preview(20)
	if len([]rune(p)) > 20 {
		t.Errorf("Preview length = %d runes, want <= 20", len([]rune(p)))
	}
	for _, r := range p {
		if r == '\n' {
			t.Error("Preview should not contain newlines")
		}
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation_AssignsLocalID(t *testing.T) {
	a := NewConversation()
	b := NewConversation()

	if a.ID == "" {
		t.Error("new conversation must carry a local id")
	}
	if a.ID == b.ID {
		t.Errorf("conversation ids collide: %q", a.ID)
	}
}

func TestConversation_AddAndTitle(t *testing.T) {
	c := NewConversation()
	if !c.IsEmpty() {
		t.Error("new conversation should be empty")
	}

	c.Add(NewUserMessage("what is the weather"))
	c.Add(NewAssistantMessage())

	if c.MessageCount() != 2 {
		t.Errorf("MessageCount = %d, want 2", c.MessageCount())
	}
	if c.GetTitle() != "what is the weather" {
		t.Errorf("GetTitle = %q, want first user message", c.GetTitle())
	}
}

func TestConversation_Replace(t *testing.T) {
	c := NewConversation()
	c.Add(NewUserMessage("old"))

	fetched := []*Message{
		NewHistoryMessage(RoleUser, "one"),
		NewHistoryMessage(RoleAssistant, "two"),
		NewHistoryMessage(RoleUser, "three"),
	}
	c.Replace(fetched)

	if c.MessageCount() != 3 {
		t.Errorf("MessageCount = %d, want 3", c.MessageCount())
	}
	if c.GetTitle() != "one" {
		t.Errorf("GetTitle = %q, want %q", c.GetTitle(), "one")
	}
}

func TestConversation_Snapshots(t *testing.T) {
	c := NewConversation()
	c.Add(NewUserMessage("q"))
	asst := NewAssistantMessage()
	asst.AppendContent("a")
	c.Add(asst)

	snaps := c.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("Snapshots length = %d, want 2", len(snaps))
	}
	if snaps[0].Role != RoleUser || snaps[1].Role != RoleAssistant {
		t.Error("snapshot roles out of order")
	}
	if snaps[1].Content != "a" {
		t.Errorf("assistant snapshot Content = %q, want %q", snaps[1].Content, "a")
	}
}
