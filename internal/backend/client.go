// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the assistant backend: the
// streaming chat endpoint and the non-streaming history fetch.
//
// Transport failures never escape as raw errors from the streaming path;
// they are classified into a closed category set (errors.go) and delivered
// as a single terminal failed chunk.
package backend

import (
	"net/http"
	"time"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is where a locally run backend listens.
	DefaultBaseURL = "http://127.0.0.1:8765"

	// DefaultTimeout bounds non-streaming requests such as history fetch.
	DefaultTimeout = 30 * time.Second

	// connectTimeout bounds the wait for the first response byte of a
	// stream. Generous because the model may think for a long while
	// before the first token; once bytes flow there is no per-chunk
	// timeout.
	connectTimeout = 2 * time.Minute

	// historyPathPrefix is the non-streaming conversation endpoint.
	historyPathPrefix = "/api/conversations/"

	// streamPath is the streaming chat endpoint.
	streamPath = "/api/chat/stream"
)

var (
	// PERFORMANCE: connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all non-streaming requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests. No overall
	// timeout: a reply can stream for minutes, so lifetime is controlled
	// via context. Only the wait for response headers is bounded.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: connectTimeout,
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one backend instance. Safe for concurrent use.
type Client struct {
	baseURL string

	httpClient      *http.Client
	streamingClient *http.Client

	// onMalformedFrame, when set, is invoked once per skipped
	// undecodable frame. Used for telemetry.
	onMalformedFrame func()
}

// Option configures a Client.
type Option func(*Client)

// WithMalformedFrameHook registers a callback invoked for every frame
// skipped due to an undecodable payload.
func WithMalformedFrameHook(fn func()) Option {
	return func(c *Client) {
		c.onMalformedFrame = fn
	}
}

// NewClient creates a client for the backend at baseURL. An empty baseURL
// selects DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         baseURL,
		httpClient:      sharedHTTPClient,
		streamingClient: sharedStreamingClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}
