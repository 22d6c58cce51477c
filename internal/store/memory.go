package store

import (
	"context"
	"slices"
	"sync"

	"github.com/eunoia-wellness/companion/internal/model"
)

// Memory is a Store kept in process memory.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	riskEvents    []model.RiskEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{conversations: make(map[string]*model.Conversation)}
}

func (m *Memory) Create(_ context.Context, userID, title string) (*model.Conversation, error) {
	conv := newConversation(userID, title)

	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.mu.Unlock()

	out := *conv
	return &out, nil
}

func (m *Memory) Get(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *conv
	out.Exchanges = slices.Clone(conv.Exchanges)
	return &out, nil
}

func (m *Memory) Append(_ context.Context, id string, ex model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	appendExchange(conv, ex)
	return nil
}

func (m *Memory) ListByUser(_ context.Context, userID string) ([]model.Conversation, error) {
	m.mu.RLock()
	var out []model.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			c := *conv
			c.Exchanges = nil
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	sortByUpdated(out)
	return out, nil
}

func (m *Memory) AddRiskEvent(_ context.Context, ev model.RiskEvent) (model.RiskEvent, error) {
	ev = stampRiskEvent(ev)

	m.mu.Lock()
	m.riskEvents = append(m.riskEvents, ev)
	m.mu.Unlock()
	return ev, nil
}

func (m *Memory) RiskEventsByUser(_ context.Context, userID string) ([]model.RiskEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.RiskEvent
	for _, ev := range m.riskEvents {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Store = (*Memory)(nil)
