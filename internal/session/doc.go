// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates streaming replies and background refresh for
// a conversation.
//
// The Coordinator owns the conversation's message list. All mutation goes
// through its mutex: the active stream session applies chunks under it,
// the background poller replaces history under it, and a user-initiated
// stop writes its placeholder under it. The poller additionally checks the
// streaming flag immediately before each fetch, so the two writers never
// interleave on the same message set.
package session
