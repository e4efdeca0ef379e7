// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/courier-tui/internal/sse"
	"github.com/jeranaias/courier-tui/internal/stream"
)

// chunkBufferSize smooths bursts from the transport without blocking the
// reader goroutine on a momentarily busy consumer.
const chunkBufferSize = 64

// =============================================================================
// REQUEST SHAPE
// =============================================================================

// ImageAttachment is a single inline image sent with a message.
type ImageAttachment struct {
	Data     []byte `json:"data"` // base64 on the wire via encoding/json
	MIMEType string `json:"mime_type"`
}

// SendOptions describes one outbound chat request.
type SendOptions struct {
	Text           string
	Provider       string
	ConversationID string // empty starts a new conversation
	Mood           string
	WebSearch      bool
	Image          *ImageAttachment
}

// streamRequest is the wire shape of the chat request body.
type streamRequest struct {
	Text           string           `json:"text"`
	Provider       string           `json:"provider"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Mood           string           `json:"mood,omitempty"`
	WebSearch      bool             `json:"web_search"`
	Image          *ImageAttachment `json:"image,omitempty"`
}

// =============================================================================
// STREAMING SEND
// =============================================================================

// SendStream opens the chat stream and returns a channel of normalized
// chunks. The channel closes when the stream ends, for any reason.
//
// Failure contract: a transport failure produces exactly one terminal
// failed chunk carrying the category's human-readable message, then the
// channel closes. Context cancellation produces no chunk at all; the
// caller owns the message it was filling and decides what to write there.
func (c *Client) SendStream(ctx context.Context, opts SendOptions) <-chan stream.Chunk {
	chunks := make(chan stream.Chunk, chunkBufferSize)
	go c.runStream(ctx, opts, chunks)
	return chunks
}

func (c *Client) runStream(ctx context.Context, opts SendOptions, chunks chan<- stream.Chunk) {
	defer close(chunks)

	body, err := json.Marshal(streamRequest{
		Text:           opts.Text,
		Provider:       opts.Provider,
		ConversationID: opts.ConversationID,
		Mood:           opts.Mood,
		WebSearch:      opts.WebSearch,
		Image:          opts.Image,
	})
	if err != nil {
		deliverFailure(ctx, chunks, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		deliverFailure(ctx, chunks, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamingClient.Do(req)
	if err != nil {
		deliverFailure(ctx, chunks, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused, then classify.
		io.CopyN(io.Discard, resp.Body, 4096)
		deliverFailure(ctx, chunks, serverError(resp.StatusCode))
		return
	}

	c.readStream(ctx, resp.Body, chunks)
}

// readStream pumps frames through the parser and normalizer until a
// terminal chunk, stream end, or cancellation.
func (c *Client) readStream(ctx context.Context, body io.Reader, chunks chan<- stream.Chunk) {
	parser := sse.NewFrameParser(body)
	if c.onMalformedFrame != nil {
		parser.SetMalformedHandler(c.onMalformedFrame)
	}
	norm := stream.NewNormalizer()

	for {
		// RELIABILITY: cancellation is level-triggered between frames;
		// the frame already in flight completes.
		if ctx.Err() != nil {
			return
		}

		frame, err := parser.Next()
		if err == io.EOF {
			// Transport closed normally. The coordinator treats a
			// missing done frame as implicit completion.
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			deliverFailure(ctx, chunks, err)
			return
		}

		chunk, ok := norm.Normalize(frame)
		if !ok {
			continue
		}

		select {
		case chunks <- chunk:
		case <-ctx.Done():
			return
		}

		if chunk.Kind.IsTerminal() {
			return
		}
	}
}

// deliverFailure sends the single synthetic failed chunk for a transport
// error, unless the context was cancelled (a cancelled session gets no
// failure chunk).
func deliverFailure(ctx context.Context, chunks chan<- stream.Chunk, err error) {
	if ctx.Err() != nil {
		return
	}
	te := Classify(fmt.Errorf("chat stream: %w", err))
	select {
	case chunks <- stream.Chunk{Kind: stream.KindFailed, ErrorMessage: te.HumanMessage()}:
	case <-ctx.Done():
	}
}
