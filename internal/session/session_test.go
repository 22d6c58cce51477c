package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/internal/stream"
	"github.com/eunoia-wellness/companion/internal/transcript"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

type view struct {
	Sender model.Sender
	Text   string
}

func views(msgs []model.Message) []view {
	out := make([]view, len(msgs))
	for i, m := range msgs {
		out[i] = view{m.Sender, m.Text}
	}
	return out
}

type startedRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *startedRecorder) ConversationStarted(_ context.Context, ev notify.Started) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ev.ConversationID)
	return nil
}

func (r *startedRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// replay answers every request with the given wire bytes and records the
// conversation ids it was asked for.
type replay struct {
	mu    sync.Mutex
	wires [][]byte
	ids   []string
	err   error
}

func (r *replay) StreamChat(_ context.Context, _ string, conversationID string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, conversationID)
	if r.err != nil {
		return nil, r.err
	}
	wire := r.wires[0]
	if len(r.wires) > 1 {
		r.wires = r.wires[1:]
	}
	return io.NopCloser(bytes.NewReader(wire)), nil
}

func encode(t *testing.T, events ...model.StreamEvent) []byte {
	t.Helper()
	wire, err := stream.Encode(events...)
	require.NoError(t, err)
	return wire
}

// chanReader delivers chunks whenever the test sends them and ignores
// cancellation, like a connection whose data is already in flight.
type chanReader struct {
	ch      chan []byte
	pending []byte
}

func (r *chanReader) Read(b []byte) (int, error) {
	if len(r.pending) == 0 {
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.pending = chunk
	}
	n := copy(b, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *chanReader) Close() error { return nil }

// offer hands chunk to the reader unless the stream loop has already
// stopped reading.
func (r *chanReader) offer(chunk []byte) {
	select {
	case r.ch <- chunk:
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubmitCompletesReply(t *testing.T) {
	rec := &startedRecorder{}
	backend := &replay{wires: [][]byte{
		encode(t, model.ContentEvent("Hi"), model.ContentEvent(" there"), model.EndEvent("c1")),
	}}
	s := New(backend, Options{UserID: "u1", Notifier: rec, Logger: logger.NewNop()})

	require.NoError(t, s.Submit(context.Background(), "hello"))

	assert.Equal(t, []view{
		{model.SenderUser, "hello"},
		{model.SenderAssistant, "Hi there"},
	}, views(s.Messages()))
	assert.Equal(t, "c1", s.ConversationID())
	assert.Equal(t, []string{"c1"}, rec.get())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, []string{""}, backend.ids)
}

func TestSubmitStreamError(t *testing.T) {
	backend := &replay{wires: [][]byte{
		encode(t, model.ContentEvent("Par"), model.ErrorEvent("downstream failure")),
	}}
	s := New(backend, Options{UserID: "u1", Logger: logger.NewNop()})

	err := s.Submit(context.Background(), "hello")
	require.Error(t, err)

	assert.Equal(t, []view{
		{model.SenderUser, "hello"},
		{model.SenderAssistant, transcript.FailureNotice},
	}, views(s.Messages()))
	assert.Empty(t, s.ConversationID())
}

func TestSubmitTransportError(t *testing.T) {
	s := New(&replay{err: errors.New("connection refused")}, Options{UserID: "u1", Logger: logger.NewNop()})

	err := s.Submit(context.Background(), "hello")
	require.Error(t, err)

	assert.Equal(t, []view{
		{model.SenderUser, "hello"},
		{model.SenderAssistant, transcript.FailureNotice},
	}, views(s.Messages()))
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitIncompleteStream(t *testing.T) {
	backend := &replay{wires: [][]byte{encode(t, model.ContentEvent("cut"))}}
	s := New(backend, Options{UserID: "u1", Logger: logger.NewNop()})

	err := s.Submit(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrIncompleteReply)
	assert.Equal(t, transcript.FailureNotice, s.Messages()[1].Text)
}

func TestMalformedFramesDoNotStall(t *testing.T) {
	wire := []byte("data: {\"content\":\"a\"}\n\ndata: nope\n\ndata: {\"content\":\"b\"}\n\ndata: {\"end\":true,\"conversation_id\":\"c1\"}\n\n")
	s := New(&replay{wires: [][]byte{wire}}, Options{UserID: "u1", Logger: logger.NewNop()})

	require.NoError(t, s.Submit(context.Background(), "hello"))
	assert.Equal(t, "ab", s.Messages()[1].Text)
}

func TestFollowUpUsesConversationID(t *testing.T) {
	rec := &startedRecorder{}
	backend := &replay{wires: [][]byte{
		encode(t, model.ContentEvent("one"), model.EndEvent("c1")),
		encode(t, model.ContentEvent("two"), model.EndEvent("c1")),
	}}
	s := New(backend, Options{UserID: "u1", Notifier: rec, Logger: logger.NewNop()})

	require.NoError(t, s.Submit(context.Background(), "first"))
	require.NoError(t, s.Submit(context.Background(), "second"))

	assert.Equal(t, []string{"", "c1"}, backend.ids)
	assert.Equal(t, []string{"c1"}, rec.get(), "started fires once")
	assert.Len(t, s.Messages(), 4)
}

func TestExistingConversationSendsItsID(t *testing.T) {
	rec := &startedRecorder{}
	backend := &replay{wires: [][]byte{encode(t, model.ContentEvent("ok"), model.EndEvent("old"))}}
	s := New(backend, Options{
		UserID:         "u1",
		ConversationID: "old",
		History:        []model.Exchange{{ID: "m1", UserMessage: "hi", BotResponse: "hello"}},
		Notifier:       rec,
		Logger:         logger.NewNop(),
	})

	require.NoError(t, s.Submit(context.Background(), "again"))

	assert.Equal(t, []string{"old"}, backend.ids)
	assert.Empty(t, rec.get())
	assert.Len(t, s.Messages(), 4)
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	s := New(&replay{}, Options{UserID: "u1", Logger: logger.NewNop()})
	assert.ErrorIs(t, s.Submit(context.Background(), "  \n"), ErrEmptyMessage)
	assert.Empty(t, s.Messages())
}

func TestSubmitWhileStreamingIsBusy(t *testing.T) {
	r := &chanReader{ch: make(chan []byte)}
	s := New(StreamerFunc(func(context.Context, string, string) (io.ReadCloser, error) {
		return r, nil
	}), Options{UserID: "u1", Logger: logger.NewNop()})

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "first") }()

	require.Eventually(t, func() bool { return s.State() == StateStreaming }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Submit(context.Background(), "second"), ErrBusy)

	r.ch <- encode(t, model.ContentEvent("ok"), model.EndEvent("c1"))
	require.NoError(t, <-done)
	assert.Len(t, s.Messages(), 2)
}

func TestAbortSilencesLateEvents(t *testing.T) {
	rec := &startedRecorder{}
	var (
		mu        sync.Mutex
		snapshots int
	)
	r := &chanReader{ch: make(chan []byte)}
	s := New(StreamerFunc(func(context.Context, string, string) (io.ReadCloser, error) {
		return r, nil
	}), Options{
		UserID:   "u1",
		Notifier: rec,
		Observer: func([]model.Message) {
			mu.Lock()
			snapshots++
			mu.Unlock()
		},
		Logger: logger.NewNop(),
	})

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "hello") }()

	r.ch <- encode(t, model.ContentEvent("Hi"))
	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].Text == "Hi"
	}, time.Second, time.Millisecond)

	s.Abort()
	mu.Lock()
	before := snapshots
	mu.Unlock()

	r.offer(encode(t, model.ContentEvent(" late"), model.EndEvent("c1")))
	close(r.ch)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.Equal(t, "Hi", s.Messages()[1].Text)
	assert.Empty(t, s.ConversationID())
	assert.Empty(t, rec.get())
	mu.Lock()
	assert.Equal(t, before, snapshots)
	mu.Unlock()

	assert.Equal(t, StateDiscarded, s.State())
	assert.ErrorIs(t, s.Submit(context.Background(), "again"), ErrDiscarded)
}

func TestAbortWhileConnecting(t *testing.T) {
	connecting := make(chan struct{})
	s := New(StreamerFunc(func(ctx context.Context, _, _ string) (io.ReadCloser, error) {
		close(connecting)
		<-ctx.Done()
		return nil, ctx.Err()
	}), Options{UserID: "u1", Logger: logger.NewNop()})

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "hello") }()

	<-connecting
	s.Abort()
	s.Abort()

	assert.ErrorIs(t, <-done, ErrDiscarded)
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Text, "no failure notice after abort")
}

// blockingNotifier holds ConversationStarted until its context ends or the
// timeout passes, like a slow history refresh.
type blockingNotifier struct {
	entered  chan struct{}
	timeout  time.Duration
	mu       sync.Mutex
	calls    int
	canceled bool
}

func (n *blockingNotifier) ConversationStarted(ctx context.Context, _ notify.Started) error {
	n.mu.Lock()
	n.calls++
	first := n.calls == 1
	n.mu.Unlock()
	if first {
		close(n.entered)
	}

	select {
	case <-ctx.Done():
		n.mu.Lock()
		n.canceled = true
		n.mu.Unlock()
		return ctx.Err()
	case <-time.After(n.timeout):
		return nil
	}
}

func (n *blockingNotifier) snapshot() (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls, n.canceled
}

func TestAbortIsNotHeldUpBySlowNotifier(t *testing.T) {
	n := &blockingNotifier{entered: make(chan struct{}), timeout: 3 * time.Second}
	backend := &replay{wires: [][]byte{encode(t, model.ContentEvent("Hi"), model.EndEvent("c1"))}}
	s := New(backend, Options{UserID: "u1", Notifier: n, Logger: logger.NewNop()})

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "hello") }()

	select {
	case <-n.entered:
	case <-time.After(time.Second):
		t.Fatal("notifier was never called")
	}

	aborted := make(chan struct{})
	start := time.Now()
	go func() {
		s.Abort()
		close(aborted)
	}()
	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("abort waited on the notifier")
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit did not return after abort")
	}

	calls, canceled := n.snapshot()
	assert.Equal(t, 1, calls)
	assert.True(t, canceled, "abort cancels the pending notification")
	assert.Equal(t, "c1", s.ConversationID())
	assert.Equal(t, StateDiscarded, s.State())

	time.Sleep(20 * time.Millisecond)
	calls, _ = n.snapshot()
	assert.Equal(t, 1, calls, "no notification after abort")
}

func TestAbortBeforeEndSkipsNotification(t *testing.T) {
	n := &blockingNotifier{entered: make(chan struct{}), timeout: time.Millisecond}
	r := &chanReader{ch: make(chan []byte)}
	s := New(StreamerFunc(func(context.Context, string, string) (io.ReadCloser, error) {
		return r, nil
	}), Options{UserID: "u1", Notifier: n, Logger: logger.NewNop()})

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "hello") }()

	r.ch <- encode(t, model.ContentEvent("Hi"))
	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 2 && msgs[1].Text == "Hi"
	}, time.Second, time.Millisecond)

	s.Abort()
	r.offer(encode(t, model.EndEvent("c1")))
	close(r.ch)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	calls, _ := n.snapshot()
	assert.Zero(t, calls)
	assert.Empty(t, s.ConversationID())
}
