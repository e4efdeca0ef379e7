// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Message is one turn in a conversation. Assistant messages move through a
// three-phase lifecycle (thinking, responding, done) while their content is
// accumulated from a token stream; user messages are complete on creation.
// A Conversation is an ordered list of messages plus identity metadata.
//
// The package holds state only. The transition rules that mutate a message
// as stream chunks arrive live in the stream package; the ownership and
// locking rules live in the session package.
package model
