// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse parses the server-sent-events style stream produced by the
// courier backend.
//
// The stream is text framed as blocks: an optional "event:" line naming the
// block, one or more "data:" lines carrying a JSON payload, and a blank line
// terminating the block. LineReader splits the raw bytes into ordered lines;
// FrameParser groups lines into (event, payload) frames.
//
// A single malformed frame never aborts the stream: frames whose payload
// fails to decode as JSON are skipped (and counted via an optional handler),
// because losing an otherwise-good stream to one bad frame is worse than
// losing the frame.
package sse
