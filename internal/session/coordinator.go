// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/courier-tui/internal/backend"
	"github.com/jeranaias/courier-tui/internal/model"
	"github.com/jeranaias/courier-tui/internal/stream"
)

// stoppedPlaceholder fills an assistant message that was cancelled before
// any visible text arrived, so the UI never shows an empty bubble.
const stoppedPlaceholder = "stopped"

// ErrNoConversation is returned for operations on an unknown conversation.
var ErrNoConversation = errors.New("no such conversation")

// Backend is the transport surface the coordinator needs. *backend.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	SendStream(ctx context.Context, opts backend.SendOptions) <-chan stream.Chunk
	FetchHistory(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)
}

// =============================================================================
// REQUEST AND HANDLE
// =============================================================================

// Request describes one user turn to send.
type Request struct {
	Text      string
	Provider  string
	Mood      string
	WebSearch bool
	Image     *backend.ImageAttachment
}

// Handle is the caller's grip on one live stream session.
type Handle struct {
	c    *Coordinator
	sess *streamSession
}

// Stop cancels the session and waits for its teardown. After Stop returns,
// the target message is in its terminal phase and no further chunks will
// mutate it.
func (h *Handle) Stop() {
	h.sess.cancel()
	<-h.sess.done
}

// Done is closed when the session has fully torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.sess.done
}

// Snapshot returns a value copy of the live assistant message.
func (h *Handle) Snapshot() model.Snapshot {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.sess.target.Snapshot()
}

// streamSession is one active send-and-stream operation.
type streamSession struct {
	cancel context.CancelFunc
	done   chan struct{}
	target *model.Message
}

// convState is a conversation plus its streaming bookkeeping.
type convState struct {
	conv *model.Conversation

	// backendID is the server-assigned conversation id, learned from the
	// first done frame. Empty until then.
	backendID string

	streaming bool
	session   *streamSession
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns the conversations and arbitrates all mutation of their
// message lists between stream sessions, the poller, and user stops.
type Coordinator struct {
	backend Backend

	mu       sync.Mutex
	convs    map[string]*convState
	selected string
	poller   *Poller

	// notify carries a coalesced "something changed" signal to the UI.
	notify chan struct{}

	// onChunk, when set, observes every applied chunk. Used for telemetry.
	onChunk func(stream.Chunk)
}

// NewCoordinator creates a coordinator over the given transport.
func NewCoordinator(b Backend) *Coordinator {
	return &Coordinator{
		backend: b,
		convs:   make(map[string]*convState),
		notify:  make(chan struct{}, 1),
	}
}

// SetChunkObserver registers a callback invoked for every chunk applied to
// a message. Called outside the coordinator lock.
func (c *Coordinator) SetChunkObserver(fn func(stream.Chunk)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChunk = fn
}

// Updates returns the coalesced change-notification channel. A receive
// means "state changed, take fresh snapshots"; signals are collapsed, not
// queued.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.notify
}

func (c *Coordinator) notifyChange() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// NewConversation creates an empty conversation, selects it, and returns
// its local id.
func (c *Coordinator) NewConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := model.NewConversation()
	c.convs[conv.ID] = &convState{conv: conv}
	c.selected = conv.ID
	return conv.ID
}

// Select makes an existing conversation current.
func (c *Coordinator) Select(localID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.convs[localID]; !ok {
		return ErrNoConversation
	}
	c.selected = localID
	return nil
}

// Selected returns the current conversation's local id, or empty.
func (c *Coordinator) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Snapshots returns value copies of the current conversation's messages.
func (c *Coordinator) Snapshots() []model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.convs[c.selected]
	if cs == nil {
		return nil
	}
	return cs.conv.Snapshots()
}

// Title returns the current conversation's title.
func (c *Coordinator) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.convs[c.selected]
	if cs == nil {
		return ""
	}
	return cs.conv.GetTitle()
}

// =============================================================================
// SEND AND STREAM
// =============================================================================

// Send appends the user's turn to the current conversation, opens a stream
// for the reply, and returns a handle on the live session.
//
// At most one session runs per conversation: a prior session for the same
// conversation is cancelled and its teardown awaited before the new target
// message is created, so two sessions never write concurrently.
func (c *Coordinator) Send(ctx context.Context, req Request) (*Handle, error) {
	sctx, cancel := context.WithCancel(ctx)
	sess := &streamSession{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.selected == "" {
		conv := model.NewConversation()
		c.convs[conv.ID] = &convState{conv: conv}
		c.selected = conv.ID
	}
	cs := c.convs[c.selected]

	// Cancel and await any prior session. The lock is dropped while
	// waiting, so a concurrent Send may have installed its own session in
	// the meantime; re-check until the slot is actually free.
	for cs.session != nil {
		prior := cs.session
		c.mu.Unlock()
		prior.cancel()
		<-prior.done
		c.mu.Lock()
	}

	// The user turn lands before its reply placeholder.
	cs.conv.Add(model.NewUserMessage(req.Text))
	target := model.NewAssistantMessage()
	cs.conv.Add(target)
	sess.target = target
	cs.session = sess
	cs.streaming = true
	backendID := cs.backendID
	c.mu.Unlock()
	c.notifyChange()

	go c.runSession(sctx, cs, sess, backend.SendOptions{
		Text:           req.Text,
		Provider:       req.Provider,
		ConversationID: backendID,
		Mood:           req.Mood,
		WebSearch:      req.WebSearch,
		Image:          req.Image,
	})

	return &Handle{c: c, sess: sess}, nil
}

// runSession consumes the chunk channel and applies it to the target
// message. It is the only writer for this message while it runs.
func (c *Coordinator) runSession(ctx context.Context, cs *convState, sess *streamSession, opts backend.SendOptions) {
	defer c.finishSession(ctx, cs, sess)

	chunks := c.backend.SendStream(ctx, opts)
	for chunk := range chunks {
		c.mu.Lock()
		observer := c.onChunk
		terminal := stream.Apply(sess.target, chunk)
		if chunk.Kind == stream.KindDone && chunk.ConversationID != "" {
			cs.backendID = chunk.ConversationID
		}
		c.mu.Unlock()

		if observer != nil {
			observer(chunk)
		}
		c.notifyChange()

		if terminal {
			// Trailing frames after the terminal chunk are the
			// transport's business; stop reading.
			return
		}
	}
}

// finishSession guarantees the target ends in its terminal phase no matter
// how the stream ended: terminal chunk, cancellation, or transport close
// without a done frame.
func (c *Coordinator) finishSession(ctx context.Context, cs *convState, sess *streamSession) {
	c.mu.Lock()
	target := sess.target
	if !target.IsDone() {
		target.ClearActiveTools()
		if ctx.Err() != nil && !target.HasContent() {
			target.SetContent(stoppedPlaceholder)
		}
		target.Phase = model.PhaseDone
	}
	cs.streaming = false
	if cs.session == sess {
		cs.session = nil
	}
	c.mu.Unlock()

	sess.cancel()
	close(sess.done)
	c.notifyChange()
}

// Stop cancels the current conversation's session, if any, and waits for
// teardown. Safe to call when nothing is streaming.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cs := c.convs[c.selected]
	var sess *streamSession
	if cs != nil {
		sess = cs.session
	}
	c.mu.Unlock()

	if sess != nil {
		sess.cancel()
		<-sess.done
	}
}

// IsStreaming reports whether the current conversation has a live session.
func (c *Coordinator) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.convs[c.selected]
	return cs != nil && cs.streaming
}

// =============================================================================
// HISTORY
// =============================================================================

// LoadHistory re-fetches the conversation's messages from the backend and
// replaces local state with the fetched set.
func (c *Coordinator) LoadHistory(ctx context.Context, localID string) ([]model.Snapshot, error) {
	c.mu.Lock()
	cs := c.convs[localID]
	if cs == nil {
		c.mu.Unlock()
		return nil, ErrNoConversation
	}
	backendID := cs.backendID
	c.mu.Unlock()

	if backendID == "" {
		// Never synced with the backend; local state is all there is.
		c.mu.Lock()
		defer c.mu.Unlock()
		return cs.conv.Snapshots(), nil
	}

	msgs, err := c.backend.FetchHistory(ctx, backendID, backend.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cs.streaming {
		// A session started while we were fetching; its writes win.
		return cs.conv.Snapshots(), nil
	}
	cs.conv.Replace(msgs)
	c.notifyChange()
	return cs.conv.Snapshots(), nil
}

// AttachBackendConversation binds a local conversation to an existing
// backend conversation id, for resuming server-side history.
func (c *Coordinator) AttachBackendConversation(localID, backendID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs := c.convs[localID]
	if cs == nil {
		return ErrNoConversation
	}
	cs.backendID = backendID
	return nil
}
