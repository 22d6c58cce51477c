// Package history keeps the list of past conversations shown next to the
// chat, refreshing it when a new conversation starts.
package history

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/internal/optimistic"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

// PlaceholderTitle labels a conversation the backend has not listed yet.
const PlaceholderTitle = "New conversation"

// Source lists the user's conversations.
type Source interface {
	History(ctx context.Context) ([]model.HistoryEntry, error)
}

// Entry is one row of the list.
type Entry struct {
	model.HistoryEntry
	Status optimistic.Status
}

// List is the conversation history. New conversations appear immediately
// as pending entries and are confirmed or dropped by the next refresh.
type List struct {
	source Source
	logger *logger.Logger

	mu        sync.Mutex
	confirmed []model.HistoryEntry
	pending   []*optimistic.Change[model.HistoryEntry]
}

// New creates an empty list backed by source.
func New(source Source, log *logger.Logger) *List {
	return &List{
		source: source,
		logger: logger.OrGlobal(log).Named("history"),
	}
}

// Entries returns pending entries, newest first, followed by the entries
// the backend reported, in its order.
func (l *List) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.pending)+len(l.confirmed))
	for i := len(l.pending) - 1; i >= 0; i-- {
		if listsConversation(l.confirmed, l.pending[i].Value.ConversationID) {
			continue
		}
		out = append(out, Entry{HistoryEntry: l.pending[i].Value, Status: optimistic.Pending})
	}
	for _, e := range l.confirmed {
		out = append(out, Entry{HistoryEntry: e, Status: optimistic.Confirmed})
	}
	return out
}

// Refresh reloads the list. Each entry that was pending when the fetch
// began is confirmed if the backend lists its conversation and reverted
// otherwise; entries added during the fetch stay pending. On error the
// list is left unchanged.
func (l *List) Refresh(ctx context.Context) error {
	l.mu.Lock()
	inFlight := slices.Clone(l.pending)
	l.mu.Unlock()

	entries, err := l.source.History(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh history: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, change := range inFlight {
		if change.Status() != optimistic.Pending {
			continue
		}
		listed := listsConversation(entries, change.Value.ConversationID)
		_ = change.Resolve(listed)
		if !listed {
			l.logger.Debug("dropping unlisted conversation",
				zap.String("conversation_id", change.Value.ConversationID))
		}
	}
	l.pending = slices.DeleteFunc(l.pending, func(c *optimistic.Change[model.HistoryEntry]) bool {
		return c.Status() != optimistic.Pending
	})
	l.confirmed = entries
	return nil
}

func listsConversation(entries []model.HistoryEntry, id string) bool {
	return slices.ContainsFunc(entries, func(e model.HistoryEntry) bool {
		return e.ConversationID == id
	})
}

// ConversationStarted adds the new conversation as a pending entry and
// refreshes the list. It lets a List be the lifecycle notifier.
func (l *List) ConversationStarted(ctx context.Context, ev notify.Started) error {
	l.mu.Lock()
	if !listsConversation(l.confirmed, ev.ConversationID) {
		l.pending = append(l.pending, optimistic.New(model.HistoryEntry{
			ConversationID: ev.ConversationID,
			Title:          PlaceholderTitle,
		}))
	}
	l.mu.Unlock()

	return l.Refresh(ctx)
}

var _ notify.Notifier = (*List)(nil)
