package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/internal/transcript"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// Backend is the part of the API client the manager needs.
type Backend interface {
	Streamer
	Conversation(ctx context.Context, conversationID string) ([]model.Exchange, error)
}

// Manager holds the session currently on screen for one user. Switching
// conversations always builds a fresh session and aborts the old one.
type Manager struct {
	backend  Backend
	userID   string
	notifier notify.Notifier
	observer transcript.Observer
	logger   *logger.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager showing a new, empty chat.
func NewManager(backend Backend, userID string, n notify.Notifier, observer transcript.Observer, log *logger.Logger) *Manager {
	m := &Manager{
		backend:  backend,
		userID:   userID,
		notifier: n,
		observer: observer,
		logger:   logger.OrGlobal(log).Named("manager"),
	}
	m.current = m.build("", nil)
	return m
}

// Current returns the session on screen.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// NewChat discards the current session and starts an empty one.
func (m *Manager) NewChat() *Session {
	return m.swap(m.build("", nil))
}

// Open loads a past conversation and makes it current. The current
// session keeps running until the history has been fetched; on error it
// stays current.
func (m *Manager) Open(ctx context.Context, conversationID string) (*Session, error) {
	exchanges, err := m.backend.Conversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	m.logger.Debug("opened conversation",
		zap.String("conversation_id", conversationID),
		zap.Int("exchanges", len(exchanges)),
	)
	return m.swap(m.build(conversationID, exchanges)), nil
}

// Reload rebuilds the current conversation from the backend, abandoning
// any reply still streaming. A chat that has no id yet restarts empty.
func (m *Manager) Reload(ctx context.Context) (*Session, error) {
	id := m.Current().ConversationID()
	if id == "" {
		return m.NewChat(), nil
	}
	return m.Open(ctx, id)
}

// Close aborts the current session.
func (m *Manager) Close() {
	m.Current().Abort()
}

func (m *Manager) build(conversationID string, history []model.Exchange) *Session {
	return New(m.backend, Options{
		UserID:         m.userID,
		ConversationID: conversationID,
		History:        history,
		Notifier:       m.notifier,
		Observer:       m.observer,
		Logger:         m.logger,
	})
}

func (m *Manager) swap(next *Session) *Session {
	m.mu.Lock()
	prev := m.current
	m.current = next
	m.mu.Unlock()

	if prev != nil {
		prev.Abort()
	}
	return next
}

// StreamerFunc adapts a function to Streamer.
type StreamerFunc func(ctx context.Context, message, conversationID string) (io.ReadCloser, error)

// StreamChat calls f.
func (f StreamerFunc) StreamChat(ctx context.Context, message, conversationID string) (io.ReadCloser, error) {
	return f(ctx, message, conversationID)
}
