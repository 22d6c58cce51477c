// Package notify delivers "conversation started" notifications to the
// parts of the client that list conversations.
package notify

import (
	"context"
	"errors"
	"time"
)

// Started is emitted once per transcript, when the backend first reports
// the identifier of a new conversation.
type Started struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	At             time.Time `json:"at"`
}

// Notifier receives conversation lifecycle notifications.
type Notifier interface {
	ConversationStarted(ctx context.Context, ev Started) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev Started) error

// ConversationStarted calls f.
func (f Func) ConversationStarted(ctx context.Context, ev Started) error {
	return f(ctx, ev)
}

// Multi fans a notification out to every notifier, in order. All of them
// are called even if one fails.
type Multi []Notifier

// ConversationStarted notifies each member and joins their errors.
func (m Multi) ConversationStarted(ctx context.Context, ev Started) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ConversationStarted(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
var Nop Notifier = Func(func(context.Context, Started) error { return nil })
