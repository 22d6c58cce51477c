package model

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// State tags whether a message may still change.
type State string

const (
	// StateInProgress marks the assistant message still receiving fragments.
	StateInProgress State = "in_progress"
	// StateFinal marks a message that will never be mutated again.
	StateFinal State = "final"
)

// Message represents one entry of a chat transcript.
type Message struct {
	// ID is a locally generated UUID for optimistic entries and the
	// server-assigned identifier for rehydrated history.
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
	State  State  `json:"state"`
}

// Final reports whether the message no longer accepts fragments.
func (m Message) Final() bool {
	return m.State == StateFinal
}
