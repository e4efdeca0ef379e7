// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/courier-tui/internal/backend"
)

// Poll timing.
const (
	// DefaultPollInterval is how often an idle conversation is refreshed.
	DefaultPollInterval = 5 * time.Second

	// pollFetchTimeout bounds one history fetch inside a poll cycle.
	pollFetchTimeout = 10 * time.Second

	// minFetchSpacing is the floor between backend fetches regardless of
	// interval configuration or manual refreshes.
	minFetchSpacing = time.Second
)

// =============================================================================
// BACKGROUND REFRESH POLLER
// =============================================================================

// Poller periodically re-fetches an idle conversation's messages to pick
// up out-of-band updates, such as work finished by a delegated process
// after the stream closed.
type Poller struct {
	c       *Coordinator
	localID string

	// limiter caps backend fetch frequency across ticks and manual
	// refreshes.
	limiter *rate.Limiter

	cancel context.CancelFunc
	done   chan struct{}
}

// StartPolling begins background refresh for a conversation, replacing any
// previous poller. It returns ErrNoConversation for an unknown id.
func (c *Coordinator) StartPolling(localID string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c.mu.Lock()
	if _, ok := c.convs[localID]; !ok {
		c.mu.Unlock()
		return ErrNoConversation
	}
	prev := c.poller

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		c:       c,
		localID: localID,
		limiter: rate.NewLimiter(rate.Every(minFetchSpacing), 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.poller = p
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	go p.run(ctx, interval)
	return nil
}

// StopPolling tears down the active poller, if any.
func (c *Coordinator) StopPolling() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	c.mu.Unlock()

	if p != nil {
		p.stop()
	}
}

func (p *Poller) stop() {
	p.cancel()
	<-p.done
}

func (p *Poller) run(ctx context.Context, interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle performs one poll: skip if a stream is active, fetch, and replace
// local state only when the backend holds more messages than we do.
func (p *Poller) cycle(ctx context.Context) {
	c := p.c

	// The streaming check happens immediately before the fetch; a live
	// session owns the message list and the poller must stay out.
	c.mu.Lock()
	cs := c.convs[p.localID]
	if cs == nil || cs.streaming || cs.backendID == "" {
		c.mu.Unlock()
		return
	}
	backendID := cs.backendID
	localCount := cs.conv.MessageCount()
	c.mu.Unlock()

	if !p.limiter.Allow() {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, pollFetchTimeout)
	msgs, err := c.backend.FetchHistory(fctx, backendID, backend.DefaultHistoryLimit)
	cancel()
	if err != nil {
		// Poll failures are silent; the next tick retries.
		return
	}
	if len(msgs) <= localCount {
		return
	}

	c.mu.Lock()
	// Re-check: a session may have started while the fetch was in
	// flight, and its writes win over stale poll data.
	if cs.streaming {
		c.mu.Unlock()
		return
	}
	if len(msgs) > cs.conv.MessageCount() {
		cs.conv.Replace(msgs)
		c.mu.Unlock()
		c.notifyChange()
		return
	}
	c.mu.Unlock()
}
