// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"io"
	"strings"
)

// Field prefixes of the wire format.
const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// =============================================================================
// FRAME TYPE
// =============================================================================

// Frame is one parsed event block: the resolved event name and its JSON
// payload. The payload is always valid JSON.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// =============================================================================
// FRAME PARSER
// =============================================================================

// FrameParser groups lines into frames.
//
// Parser state is the current event name, set by an "event:" line and reset
// by the blank line that ends each frame. Each frame carries exactly one
// JSON object in this protocol, so the first "data:" line of a frame is
// authoritative and any further "data:" lines before the next blank line
// are dropped with the frame's spare payloads.
type FrameParser struct {
	lines *LineReader

	event    string
	dataSeen bool

	// onMalformed is invoked once per skipped undecodable payload.
	onMalformed func()
}

// NewFrameParser creates a parser reading frames from r.
func NewFrameParser(r io.Reader) *FrameParser {
	return &FrameParser{
		lines: NewLineReader(r),
	}
}

// SetMalformedHandler registers a callback invoked whenever a frame is
// skipped because its payload is not decodable JSON. Must be set before the
// first call to Next.
func (p *FrameParser) SetMalformedHandler(fn func()) {
	p.onMalformed = fn
}

// Next returns the next frame.
//
// It returns io.EOF when the stream closes normally. Lines that are neither
// "event:", "data:", nor blank are ignored for forward compatibility with
// unknown directives. Frames whose payload fails to decode are skipped, not
// surfaced as errors.
func (p *FrameParser) Next() (*Frame, error) {
	for {
		line, err := p.lines.Next()
		if err != nil {
			return nil, err
		}

		switch {
		case line == "":
			// End of frame marker: reset for the next block.
			p.event = ""
			p.dataSeen = false

		case strings.HasPrefix(line, eventPrefix):
			p.event = strings.TrimSpace(line[len(eventPrefix):])

		case strings.HasPrefix(line, dataPrefix):
			if p.dataSeen {
				// First data line of the frame was authoritative.
				continue
			}
			p.dataSeen = true

			payload := line[len(dataPrefix):]
			if !json.Valid([]byte(payload)) {
				if p.onMalformed != nil {
					p.onMalformed()
				}
				continue
			}

			return &Frame{
				Event: p.resolveEvent(payload),
				Data:  json.RawMessage(payload),
			}, nil

		default:
			// Unknown directive: ignore.
		}
	}
}

// resolveEvent determines the event name for a frame: the "event:" line if
// one was seen, else a "type" field inside the payload, else empty.
func (p *FrameParser) resolveEvent(payload string) string {
	if p.event != "" {
		return p.event
	}

	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &typed); err == nil {
		return typed.Type
	}
	return ""
}
