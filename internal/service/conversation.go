// Package service provides the chat backend logic behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/store"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// ErrNotFound is returned for a conversation that does not exist or
// belongs to another user.
var ErrNotFound = errors.New("conversation not found")

const maxTitleLength = 40

// ConversationService handles conversation reads.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		logger: logger.OrGlobal(log).Named("conversations"),
	}
}

// Get retrieves a conversation by ID. An empty userID skips the owner check.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.store.Get(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	if userID != "" && conv.UserID != userID {
		return nil, ErrNotFound
	}
	return conv, nil
}

// History lists the user's conversations, most recent first.
func (s *ConversationService) History(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	convs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	entries := make([]model.HistoryEntry, len(convs))
	for i, c := range convs {
		entries[i] = model.HistoryEntry{ConversationID: c.ID, Title: c.Title}
	}
	return entries, nil
}

// Title derives a conversation title from its first message.
func Title(message string) string {
	if utf8.RuneCountInString(message) <= maxTitleLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:maxTitleLength]) + "..."
}
