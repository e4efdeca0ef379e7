// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/courier-tui/internal/backend"
	"github.com/jeranaias/courier-tui/internal/model"
	"github.com/jeranaias/courier-tui/internal/stream"
)

// fakeBackend scripts the transport for coordinator tests.
type fakeBackend struct {
	mu           sync.Mutex
	sendOpts     []backend.SendOptions
	streamFn     func(ctx context.Context, opts backend.SendOptions) <-chan stream.Chunk
	history      []*model.Message
	historyErr   error
	historyCalls int
}

func (f *fakeBackend) SendStream(ctx context.Context, opts backend.SendOptions) <-chan stream.Chunk {
	f.mu.Lock()
	f.sendOpts = append(f.sendOpts, opts)
	fn := f.streamFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, opts)
	}
	ch := make(chan stream.Chunk)
	close(ch)
	return ch
}

func (f *fakeBackend) FetchHistory(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakeBackend) historyCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCalls
}

// scripted returns a streamFn that plays fixed chunks then closes.
func scripted(chunks ...stream.Chunk) func(context.Context, backend.SendOptions) <-chan stream.Chunk {
	return func(ctx context.Context, _ backend.SendOptions) <-chan stream.Chunk {
		ch := make(chan stream.Chunk, len(chunks))
		for _, c := range chunks {
			ch <- c
		}
		close(ch)
		return ch
	}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not tear down")
	}
}

// =============================================================================
// SEND AND STREAM TESTS
// =============================================================================

func TestSendHappyPath(t *testing.T) {
	fb := &fakeBackend{streamFn: scripted(
		stream.Chunk{Kind: stream.KindTextDelta, IncrementalText: "Hel"},
		stream.Chunk{Kind: stream.KindTextDelta, IncrementalText: "lo"},
		stream.Chunk{Kind: stream.KindDone, FinalText: "Hello", ConversationID: "c1", ProviderID: "x"},
	)}
	c := NewCoordinator(fb)

	h, err := c.Send(context.Background(), Request{Text: "hi", Provider: "x"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitDone(t, h)

	snap := h.Snapshot()
	if snap.Content != "Hello" {
		t.Errorf("content = %q, want %q", snap.Content, "Hello")
	}
	if snap.Phase != model.PhaseDone {
		t.Errorf("phase = %v, want done", snap.Phase)
	}
	if snap.ProviderID != "x" {
		t.Errorf("provider = %q, want x", snap.ProviderID)
	}

	// User turn precedes the reply in the conversation.
	msgs := c.Snapshots()
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Errorf("roles = %v/%v, want user/assistant", msgs[0].Role, msgs[1].Role)
	}

	// The backend conversation id from done is reused on the next send.
	h2, err := c.Send(context.Background(), Request{Text: "again", Provider: "x"})
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	waitDone(t, h2)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.sendOpts) != 2 {
		t.Fatalf("send calls = %d, want 2", len(fb.sendOpts))
	}
	if fb.sendOpts[0].ConversationID != "" {
		t.Errorf("first send conversation id = %q, want empty", fb.sendOpts[0].ConversationID)
	}
	if fb.sendOpts[1].ConversationID != "c1" {
		t.Errorf("second send conversation id = %q, want c1", fb.sendOpts[1].ConversationID)
	}
}

func TestStopInsertsPlaceholder(t *testing.T) {
	started := make(chan struct{})
	fb := &fakeBackend{streamFn: func(ctx context.Context, _ backend.SendOptions) <-chan stream.Chunk {
		ch := make(chan stream.Chunk, 1)
		go func() {
			defer close(ch)
			ch <- stream.Chunk{Kind: stream.KindToolStarted, ToolLabel: "web_search"}
			close(started)
			<-ctx.Done()
		}()
		return ch
	}}
	c := NewCoordinator(fb)

	h, err := c.Send(context.Background(), Request{Text: "hi", Provider: "x"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	<-started
	h.Stop()

	snap := h.Snapshot()
	if snap.Phase != model.PhaseDone {
		t.Errorf("phase = %v, want done after stop", snap.Phase)
	}
	if len(snap.ActiveTools) != 0 {
		t.Errorf("active tools = %v, want empty after stop", snap.ActiveTools)
	}
	if snap.Content != stoppedPlaceholder {
		t.Errorf("content = %q, want placeholder", snap.Content)
	}
	if c.IsStreaming() {
		t.Error("still marked streaming after stop")
	}
}

func TestStopKeepsPartialText(t *testing.T) {
	streamed := make(chan struct{})
	fb := &fakeBackend{streamFn: func(ctx context.Context, _ backend.SendOptions) <-chan stream.Chunk {
		ch := make(chan stream.Chunk, 1)
		go func() {
			defer close(ch)
			ch <- stream.Chunk{Kind: stream.KindTextDelta, IncrementalText: "partial answer"}
			close(streamed)
			<-ctx.Done()
		}()
		return ch
	}}
	c := NewCoordinator(fb)

	h, _ := c.Send(context.Background(), Request{Text: "hi", Provider: "x"})
	<-streamed

	// Let the chunk drain into the message before stopping.
	waitFor(t, func() bool { return h.Snapshot().Content == "partial answer" })
	h.Stop()

	snap := h.Snapshot()
	if snap.Content != "partial answer" {
		t.Errorf("content = %q, partial text must survive a stop", snap.Content)
	}
	if snap.Phase != model.PhaseDone {
		t.Errorf("phase = %v, want done", snap.Phase)
	}
}

func TestImplicitCompletionOnStreamClose(t *testing.T) {
	// Transport closes without ever sending done or error.
	fb := &fakeBackend{streamFn: scripted(
		stream.Chunk{Kind: stream.KindTextDelta, IncrementalText: "half a rep"},
	)}
	c := NewCoordinator(fb)

	h, _ := c.Send(context.Background(), Request{Text: "hi", Provider: "x"})
	waitDone(t, h)

	snap := h.Snapshot()
	if snap.Phase != model.PhaseDone {
		t.Errorf("phase = %v, must never be left in %v", snap.Phase, model.PhaseResponding)
	}
	if snap.Content != "half a rep" {
		t.Errorf("content = %q, partial text kept on implicit completion", snap.Content)
	}
}

func TestSecondSendAwaitsFirstTeardown(t *testing.T) {
	release := make(chan struct{})
	fb := &fakeBackend{streamFn: func(ctx context.Context, _ backend.SendOptions) <-chan stream.Chunk {
		ch := make(chan stream.Chunk)
		go func() {
			defer close(ch)
			select {
			case <-ctx.Done():
			case <-release:
			}
		}()
		return ch
	}}
	c := NewCoordinator(fb)

	h1, _ := c.Send(context.Background(), Request{Text: "first", Provider: "x"})

	// The second send cancels the first session and waits for it.
	h2, err := c.Send(context.Background(), Request{Text: "second", Provider: "x"})
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}

	select {
	case <-h1.Done():
	default:
		t.Error("first session must be fully torn down before the second starts")
	}
	if h1.Snapshot().Phase != model.PhaseDone {
		t.Error("first target not terminal")
	}

	close(release)
	waitDone(t, h2)

	if got := len(c.Snapshots()); got != 4 {
		t.Errorf("message count = %d, want 4 (two user/assistant pairs)", got)
	}
}

func TestConcurrentSendsNeverOverlapSessions(t *testing.T) {
	// Each fake stream stays open until cancelled and tracks how many
	// streams exist at once; the coordinator must keep that at one.
	var active, maxActive int32
	fb := &fakeBackend{}
	fb.streamFn = func(ctx context.Context, _ backend.SendOptions) <-chan stream.Chunk {
		ch := make(chan stream.Chunk)
		go func() {
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			<-ctx.Done()
			atomic.AddInt32(&active, -1)
			close(ch)
		}()
		return ch
	}
	c := NewCoordinator(fb)
	c.NewConversation()

	const senders = 4
	handles := make([]*Handle, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.Send(context.Background(), Request{Text: "go", Provider: "x"})
			if err != nil {
				t.Errorf("Send: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	// The last surviving session is still live; stop it and drain.
	c.Stop()
	for _, h := range handles {
		if h != nil {
			waitDone(t, h)
		}
	}

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("concurrent live sessions = %d, want 1", got)
	}
	if got := len(c.Snapshots()); got != senders*2 {
		t.Errorf("message count = %d, want %d (one user/assistant pair per send)", got, senders*2)
	}
}

func TestChunkObserver(t *testing.T) {
	fb := &fakeBackend{streamFn: scripted(
		stream.Chunk{Kind: stream.KindTextDelta, IncrementalText: "a"},
		stream.Chunk{Kind: stream.KindDone},
	)}
	c := NewCoordinator(fb)

	var mu sync.Mutex
	var seen []stream.Kind
	c.SetChunkObserver(func(ch stream.Chunk) {
		mu.Lock()
		seen = append(seen, ch.Kind)
		mu.Unlock()
	})

	h, _ := c.Send(context.Background(), Request{Text: "hi", Provider: "x"})
	waitDone(t, h)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[1] != stream.KindDone {
		t.Errorf("observed kinds = %v", seen)
	}
}

// =============================================================================
// POLLER TESTS
// =============================================================================

// testPoller builds a poller without the ticker loop so cycles run under
// test control.
func testPoller(c *Coordinator, localID string) *Poller {
	return &Poller{
		c:       c,
		localID: localID,
		limiter: rate.NewLimiter(rate.Inf, 1),
		done:    make(chan struct{}),
	}
}

func TestPollerSkipsWhileStreaming(t *testing.T) {
	fb := &fakeBackend{}
	c := NewCoordinator(fb)
	id := c.NewConversation()
	c.AttachBackendConversation(id, "c1")

	c.mu.Lock()
	c.convs[id].streaming = true
	c.mu.Unlock()

	p := testPoller(c, id)
	p.cycle(context.Background())

	if fb.historyCallCount() != 0 {
		t.Error("poll cycle must not fetch while a stream is active")
	}
}

func TestPollerSkipsWithoutBackendID(t *testing.T) {
	fb := &fakeBackend{}
	c := NewCoordinator(fb)
	id := c.NewConversation()

	p := testPoller(c, id)
	p.cycle(context.Background())

	if fb.historyCallCount() != 0 {
		t.Error("nothing to poll before the backend assigns a conversation id")
	}
}

func TestPollerReplacesWhenBackendHasMore(t *testing.T) {
	fetched := []*model.Message{
		model.NewHistoryMessage(model.RoleUser, "hi"),
		model.NewHistoryMessage(model.RoleAssistant, "hello"),
		model.NewHistoryMessage(model.RoleAssistant, "delegated result"),
	}
	fb := &fakeBackend{history: fetched}
	c := NewCoordinator(fb)
	id := c.NewConversation()
	c.AttachBackendConversation(id, "c1")

	p := testPoller(c, id)
	p.cycle(context.Background())

	msgs := c.Snapshots()
	if len(msgs) != 3 {
		t.Fatalf("message count = %d, want 3 after replace", len(msgs))
	}
	if msgs[2].Content != "delegated result" {
		t.Errorf("last message = %q", msgs[2].Content)
	}
}

func TestPollerKeepsLocalWhenCountsEqual(t *testing.T) {
	fb := &fakeBackend{history: []*model.Message{
		model.NewHistoryMessage(model.RoleUser, "remote"),
	}}
	c := NewCoordinator(fb)
	id := c.NewConversation()
	c.AttachBackendConversation(id, "c1")

	c.mu.Lock()
	c.convs[id].conv.Add(model.NewUserMessage("local"))
	c.mu.Unlock()

	p := testPoller(c, id)
	p.cycle(context.Background())

	msgs := c.Snapshots()
	if len(msgs) != 1 || msgs[0].Content != "local" {
		t.Errorf("local state replaced by an equal-count fetch: %+v", msgs)
	}
}

func TestStartStopPolling(t *testing.T) {
	fb := &fakeBackend{history: []*model.Message{
		model.NewHistoryMessage(model.RoleUser, "hi"),
		model.NewHistoryMessage(model.RoleAssistant, "hello"),
	}}
	c := NewCoordinator(fb)
	id := c.NewConversation()
	c.AttachBackendConversation(id, "c1")

	if err := c.StartPolling(id, 10*time.Millisecond); err != nil {
		t.Fatalf("StartPolling: %v", err)
	}

	waitFor(t, func() bool { return len(c.Snapshots()) == 2 })
	c.StopPolling()

	if err := c.StartPolling("nope", time.Second); err != ErrNoConversation {
		t.Errorf("StartPolling(unknown) = %v, want ErrNoConversation", err)
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestLoadHistoryReplacesLocalState(t *testing.T) {
	fb := &fakeBackend{history: []*model.Message{
		model.NewHistoryMessage(model.RoleUser, "hi"),
		model.NewHistoryMessage(model.RoleAssistant, "hello"),
	}}
	c := NewCoordinator(fb)
	id := c.NewConversation()
	c.AttachBackendConversation(id, "c1")

	msgs, err := c.LoadHistory(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history length = %d, want 2", len(msgs))
	}
	if msgs[1].Content != "hello" {
		t.Errorf("history[1] = %q", msgs[1].Content)
	}
}

func TestLoadHistoryUnknownConversation(t *testing.T) {
	c := NewCoordinator(&fakeBackend{})
	if _, err := c.LoadHistory(context.Background(), "nope"); err != ErrNoConversation {
		t.Errorf("err = %v, want ErrNoConversation", err)
	}
}

// waitFor polls a condition with a deadline.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
