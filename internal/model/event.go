package model

// EventKind discriminates the StreamEvent union.
type EventKind string

const (
	EventContent EventKind = "content"
	EventEnd     EventKind = "end"
	EventError   EventKind = "error"
)

// StreamEvent is one decoded frame of a chat reply stream.
//
// Only the field matching Kind is meaningful: Text for content,
// ConversationID for end, Message for error.
type StreamEvent struct {
	Kind           EventKind
	Text           string
	ConversationID string
	Message        string
}

// ContentEvent builds a content fragment event.
func ContentEvent(text string) StreamEvent {
	return StreamEvent{Kind: EventContent, Text: text}
}

// EndEvent builds a terminal end event.
func EndEvent(conversationID string) StreamEvent {
	return StreamEvent{Kind: EventEnd, ConversationID: conversationID}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, Message: message}
}

// Terminal reports whether the event ends a request's stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventEnd || e.Kind == EventError
}

// Frame is the JSON payload carried by each "data:" line of the stream:
// {"content": "..."}, {"end": true, "conversation_id": "..."} or
// {"error": "..."}.
type Frame struct {
	Content        *string `json:"content,omitempty"`
	End            bool    `json:"end,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Error          *string `json:"error,omitempty"`
}

// Event maps the payload to a StreamEvent. An error field wins over end,
// and end wins over content. ok is false for payloads carrying none of them.
func (f Frame) Event() (ev StreamEvent, ok bool) {
	switch {
	case f.Error != nil:
		return ErrorEvent(*f.Error), true
	case f.End:
		return EndEvent(f.ConversationID), true
	case f.Content != nil:
		return ContentEvent(*f.Content), true
	default:
		return StreamEvent{}, false
	}
}

// FrameOf is the inverse of Frame.Event.
func FrameOf(e StreamEvent) Frame {
	switch e.Kind {
	case EventContent:
		text := e.Text
		return Frame{Content: &text}
	case EventEnd:
		return Frame{End: true, ConversationID: e.ConversationID}
	case EventError:
		msg := e.Message
		return Frame{Error: &msg}
	default:
		return Frame{}
	}
}
