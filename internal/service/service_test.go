package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunoia-wellness/companion/internal/llm"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/store"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

type failingClient struct{ err error }

func (c failingClient) Name() string { return "failing" }

func (c failingClient) CompleteStream(context.Context, *llm.CompletionRequest, llm.StreamCallback) (*llm.CompletionResponse, error) {
	return nil, c.err
}

func newServices(client llm.Client) (*ConversationService, *MessageService, store.Store) {
	st := store.NewMemory()
	convs := NewConversationService(st, logger.NewNop())
	return convs, NewMessageService(convs, st, client, "", logger.NewNop()), st
}

func TestReplyCreatesConversation(t *testing.T) {
	ctx := context.Background()
	convs, msgs, _ := newServices(llm.NewScriptedClient(0))

	req := &model.ChatRequest{UserID: "u1", Message: "I feel anxious"}
	conv, err := msgs.Prepare(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, conv)

	var reply strings.Builder
	id, err := msgs.Reply(ctx, conv, req, func(token string, _ int) error {
		reply.WriteString(token)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := convs.Get(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, "I feel anxious", stored.Title)
	require.Len(t, stored.Exchanges, 1)
	assert.Equal(t, reply.String(), stored.Exchanges[0].BotResponse)

	history, err := convs.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.HistoryEntry{{ConversationID: id, Title: "I feel anxious"}}, history)
}

func TestReplyContinuesConversation(t *testing.T) {
	ctx := context.Background()
	convs, msgs, _ := newServices(llm.NewScriptedClient(0))
	noop := func(string, int) error { return nil }

	id, err := msgs.Reply(ctx, nil, &model.ChatRequest{UserID: "u1", Message: "hi"}, noop)
	require.NoError(t, err)

	req := &model.ChatRequest{UserID: "u1", Message: "again", ConversationID: id}
	conv, err := msgs.Prepare(ctx, req)
	require.NoError(t, err)
	next, err := msgs.Reply(ctx, conv, req, noop)
	require.NoError(t, err)
	assert.Equal(t, id, next)

	stored, err := convs.Get(ctx, "", id)
	require.NoError(t, err)
	assert.Len(t, stored.Exchanges, 2)
}

func TestPrepareRejectsForeignConversation(t *testing.T) {
	ctx := context.Background()
	_, msgs, st := newServices(llm.NewScriptedClient(0))

	conv, err := st.Create(ctx, "u1", "mine")
	require.NoError(t, err)

	_, err = msgs.Prepare(ctx, &model.ChatRequest{UserID: "u2", Message: "hi", ConversationID: conv.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = msgs.Prepare(ctx, &model.ChatRequest{UserID: "u1", Message: "hi", ConversationID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplyFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	convs, msgs, _ := newServices(failingClient{err: boom})

	_, err := msgs.Reply(ctx, nil, &model.ChatRequest{UserID: "u1", Message: "hi"},
		func(string, int) error { return nil })
	assert.ErrorIs(t, err, boom)

	history, err := convs.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "short", Title("short"))

	long := strings.Repeat("é", 50)
	assert.Equal(t, strings.Repeat("é", 40)+"...", Title(long))
}

func TestSafetyReport(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewSafetyService(st, logger.NewNop())

	ev, err := svc.Report(ctx, model.RiskEvent{UserID: "u1", RiskLevel: model.RiskHigh, Message: "can't sleep, scared"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)

	_, err = svc.Report(ctx, model.RiskEvent{UserID: "u1", RiskLevel: "severe", Message: "x"})
	assert.ErrorIs(t, err, ErrInvalidRiskLevel)

	events, err := svc.Events(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
	assert.Equal(t, model.RiskHigh, events[0].RiskLevel)
}
