package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

type fakeBackend struct {
	StreamerFunc
	conversations map[string][]model.Exchange
}

func (b *fakeBackend) Conversation(_ context.Context, id string) ([]model.Exchange, error) {
	ex, ok := b.conversations[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return ex, nil
}

func TestManagerNewChatDiscardsCurrent(t *testing.T) {
	m := NewManager(&fakeBackend{}, "u1", nil, nil, logger.NewNop())
	first := m.Current()

	second := m.NewChat()

	assert.NotSame(t, first, second)
	assert.Same(t, second, m.Current())
	assert.Equal(t, StateDiscarded, first.State())
	assert.Equal(t, StateIdle, second.State())
	assert.Empty(t, second.Messages())
}

func TestManagerOpenRehydrates(t *testing.T) {
	backend := &fakeBackend{conversations: map[string][]model.Exchange{
		"c1": {{ID: "m1", UserMessage: "hi", BotResponse: "hello"}},
	}}
	m := NewManager(backend, "u1", nil, nil, logger.NewNop())
	first := m.Current()

	s, err := m.Open(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, "c1", s.ConversationID())
	assert.Equal(t, []view{
		{model.SenderUser, "hi"},
		{model.SenderAssistant, "hello"},
	}, views(s.Messages()))
	assert.Equal(t, StateDiscarded, first.State())
}

func TestManagerOpenFailureKeepsCurrent(t *testing.T) {
	m := NewManager(&fakeBackend{}, "u1", nil, nil, logger.NewNop())
	first := m.Current()

	_, err := m.Open(context.Background(), "missing")

	require.Error(t, err)
	assert.Same(t, first, m.Current())
	assert.Equal(t, StateIdle, first.State())
}

func TestManagerSwitchStopsOldStream(t *testing.T) {
	r := &chanReader{ch: make(chan []byte)}
	var (
		mu   sync.Mutex
		seen [][]model.Message
	)
	backend := &fakeBackend{StreamerFunc: func(context.Context, string, string) (io.ReadCloser, error) {
		return r, nil
	}}
	m := NewManager(backend, "u1", nil, func(msgs []model.Message) {
		mu.Lock()
		seen = append(seen, msgs)
		mu.Unlock()
	}, logger.NewNop())

	old := m.Current()
	done := make(chan error, 1)
	go func() { done <- old.Submit(context.Background(), "hello") }()
	require.Eventually(t, func() bool { return old.State() == StateStreaming }, time.Second, time.Millisecond)

	fresh := m.NewChat()
	mu.Lock()
	count := len(seen)
	mu.Unlock()

	r.ch <- encode(t, model.ContentEvent("late"), model.EndEvent("c1"))
	close(r.ch)
	assert.ErrorIs(t, <-done, ErrDiscarded)

	mu.Lock()
	assert.Equal(t, count, len(seen), "no snapshots from the discarded session")
	mu.Unlock()
	assert.Empty(t, fresh.Messages())
	assert.Empty(t, fresh.ConversationID())
}

func TestManagerReload(t *testing.T) {
	backend := &fakeBackend{
		StreamerFunc: (&replay{wires: [][]byte{encode(t, model.ContentEvent("ok"), model.EndEvent("c1"))}}).StreamChat,
		conversations: map[string][]model.Exchange{
			"c1": {{ID: "m1", UserMessage: "hello", BotResponse: "ok"}},
		},
	}
	m := NewManager(backend, "u1", nil, nil, logger.NewNop())

	s, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.ConversationID())

	require.NoError(t, s.Submit(context.Background(), "hello"))

	reloaded, err := m.Reload(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, s, reloaded)
	assert.Equal(t, "c1", reloaded.ConversationID())
	assert.Len(t, reloaded.Messages(), 2)

	m.Close()
	assert.Equal(t, StateDiscarded, reloaded.State())
}
