// Package transcript holds the ordered chat messages of one conversation
// and applies decoded stream events to them.
package transcript

import (
	"sync"

	"github.com/google/uuid"

	"github.com/eunoia-wellness/companion/internal/model"
)

// FailureNotice replaces the reply when a request fails, whether before
// streaming starts or through a mid-stream error event.
const FailureNotice = "Sorry, I'm having trouble responding right now. Please try again."

// Observer receives a snapshot of the transcript after every mutation.
type Observer func(messages []model.Message)

// Transcript is the accumulator for one conversation session. At most one
// assistant message is in progress at any time; finalized messages are
// never mutated.
type Transcript struct {
	mu         sync.Mutex
	messages   []model.Message
	inProgress int // index into messages, -1 when idle
	observer   Observer
}

// New creates an empty transcript. observer may be nil.
func New(observer Observer) *Transcript {
	return &Transcript{
		inProgress: -1,
		observer:   observer,
	}
}

// FromHistory builds a transcript from persisted exchanges, each expanding
// to a user message followed by the assistant reply.
func FromHistory(exchanges []model.Exchange, observer Observer) *Transcript {
	t := New(observer)
	t.messages = make([]model.Message, 0, 2*len(exchanges))
	for _, ex := range exchanges {
		t.messages = append(t.messages,
			model.Message{ID: ex.ID + ":user", Text: ex.UserMessage, Sender: model.SenderUser, State: model.StateFinal},
			model.Message{ID: ex.ID + ":assistant", Text: ex.BotResponse, Sender: model.SenderAssistant, State: model.StateFinal},
		)
	}
	return t
}

// Begin records a submitted user message and opens an empty assistant
// message to receive the reply. A reply still in progress is finalized
// first. It returns the id of the new assistant message.
func (t *Transcript) Begin(text string) string {
	t.mu.Lock()
	t.finalizeLocked()

	t.messages = append(t.messages, model.Message{
		ID:     newID(),
		Text:   text,
		Sender: model.SenderUser,
		State:  model.StateFinal,
	})

	id := newID()
	t.messages = append(t.messages, model.Message{
		ID:     id,
		Sender: model.SenderAssistant,
		State:  model.StateInProgress,
	})
	t.inProgress = len(t.messages) - 1

	t.notifyUnlock()
	return id
}

// Apply folds one stream event into the in-progress message. Content is
// appended, end finalizes and returns the carried conversation id, error
// replaces the partial text with FailureNotice and finalizes. applied is
// false when no message is in progress.
func (t *Transcript) Apply(ev model.StreamEvent) (conversationID string, applied bool) {
	t.mu.Lock()
	if t.inProgress < 0 {
		t.mu.Unlock()
		return "", false
	}

	msg := &t.messages[t.inProgress]
	switch ev.Kind {
	case model.EventContent:
		msg.Text += ev.Text
	case model.EventEnd:
		conversationID = ev.ConversationID
		t.finalizeLocked()
	case model.EventError:
		msg.Text = FailureNotice
		t.finalizeLocked()
	default:
		t.mu.Unlock()
		return "", false
	}

	t.notifyUnlock()
	return conversationID, true
}

// Fail finalizes the in-progress message with FailureNotice. It is used
// for transport failures and reports whether a message was in progress.
func (t *Transcript) Fail() bool {
	_, applied := t.Apply(model.ErrorEvent(""))
	return applied
}

// Streaming reports whether an assistant message is in progress.
func (t *Transcript) Streaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgress >= 0
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Snapshot returns a copy of the messages in chronological order.
func (t *Transcript) Snapshot() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transcript) finalizeLocked() {
	if t.inProgress >= 0 {
		t.messages[t.inProgress].State = model.StateFinal
		t.inProgress = -1
	}
}

func (t *Transcript) snapshotLocked() []model.Message {
	out := make([]model.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// notifyUnlock releases the lock and hands the observer a snapshot.
func (t *Transcript) notifyUnlock() {
	var snapshot []model.Message
	if t.observer != nil {
		snapshot = t.snapshotLocked()
	}
	t.mu.Unlock()

	if t.observer != nil {
		t.observer(snapshot)
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
