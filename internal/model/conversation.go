// Package model defines data structures for the companion chat client and
// the wire contract of the backend it talks to.
package model

import (
	"time"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Exchange is one persisted user message and the reply it received.
type Exchange struct {
	ID          string    `json:"_id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// ConversationResponse is the body of GET /api/conversation/{id}.
type ConversationResponse struct {
	Messages []Exchange `json:"messages"`
}

// HistoryEntry labels one past conversation.
type HistoryEntry struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// HistoryResponse is the body of GET /api/chat/history/{user_id}.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

// Conversation is a stored conversation thread on the backend stub.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Exchanges []Exchange `json:"exchanges"`
}

// ErrorResponse is the JSON body of a non-streaming failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
