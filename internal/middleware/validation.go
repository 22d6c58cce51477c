package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxMessageLength = 10000
	maxIDLength      = 128
)

// ValidateMessage validates chat message text.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if len(message) > maxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(message) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateUserID validates a user ID.
func ValidateUserID(id string) error {
	if id == "" {
		return errors.New("user ID cannot be empty")
	}
	if len(id) > maxIDLength {
		return errors.New("user ID exceeds maximum length")
	}
	return nil
}

// ValidateConversationID validates a conversation ID. Stored ids are
// opaque strings, so only the length is checked.
func ValidateConversationID(id string) error {
	if id == "" {
		return errors.New("conversation ID cannot be empty")
	}
	if len(id) > maxIDLength || strings.ContainsAny(id, "/?#") {
		return errors.New("invalid conversation ID format")
	}
	return nil
}
