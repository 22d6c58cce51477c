// Package store persists conversations and safety events for the
// development backend.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/eunoia-wellness/companion/internal/model"
)

// ErrNotFound is returned for an unknown conversation id.
var ErrNotFound = errors.New("store: conversation not found")

// Store holds conversations and their exchanges.
type Store interface {
	// Create starts an empty conversation owned by userID.
	Create(ctx context.Context, userID, title string) (*model.Conversation, error)

	// Get returns the conversation with all exchanges.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// Append adds an exchange to the end of a conversation.
	Append(ctx context.Context, id string, ex model.Exchange) error

	// ListByUser returns the user's conversations, most recently updated
	// first. Exchanges are not included.
	ListByUser(ctx context.Context, userID string) ([]model.Conversation, error)

	// AddRiskEvent records a safety event and returns it with its id and
	// timestamp filled in.
	AddRiskEvent(ctx context.Context, ev model.RiskEvent) (model.RiskEvent, error)

	// RiskEventsByUser returns the user's safety events, oldest first.
	RiskEventsByUser(ctx context.Context, userID string) ([]model.RiskEvent, error)

	// Close releases resources.
	Close() error
}

func newConversation(userID, title string) *model.Conversation {
	now := time.Now().UTC()
	return &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Exchanges: []model.Exchange{},
	}
}

func appendExchange(conv *model.Conversation, ex model.Exchange) {
	if ex.ID == "" {
		ex.ID = uuid.Must(uuid.NewV7()).String()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	conv.Exchanges = append(conv.Exchanges, ex)
	conv.UpdatedAt = ex.CreatedAt
}

func stampRiskEvent(ev model.RiskEvent) model.RiskEvent {
	ev.ID = uuid.Must(uuid.NewV7()).String()
	ev.CreatedAt = time.Now().UTC()
	return ev
}

func sortByUpdated(convs []model.Conversation) {
	slices.SortStableFunc(convs, func(a, b model.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
