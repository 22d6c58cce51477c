// Package llm generates companion replies from a language model provider.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/eunoia-wellness/companion/internal/model"
)

// SystemPrompt frames every reply.
const SystemPrompt = "You are a supportive mental wellness chatbot for young people. " +
	"Respond with empathy, encouragement, and helpful strategies. " +
	"Keep replies short and warm, and suggest reaching out to a trusted adult " +
	"or a crisis line when someone may be in danger."

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// CompleteStream generates a reply, calling callback for each token.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderScripted  Provider = "scripted"
)

// Config selects and configures a provider.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	Model           string
	TokenDelay      time.Duration
}

// NewClient picks Anthropic, then OpenAI, by whichever key is set, and
// falls back to the scripted client.
func NewClient(cfg Config) (Client, error) {
	switch {
	case cfg.AnthropicAPIKey != "":
		return NewAnthropicClient(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		return NewOpenAIClient(cfg.OpenAIAPIKey)
	default:
		return NewScriptedClient(cfg.TokenDelay), nil
	}
}

// BuildRequest turns stored exchanges plus the new message into a
// completion request carrying the system prompt.
func BuildRequest(modelName string, history []model.Exchange, message string) *CompletionRequest {
	messages := make([]ChatMessage, 0, 2*len(history)+1)
	for _, ex := range history {
		messages = append(messages,
			ChatMessage{Role: RoleUser, Content: ex.UserMessage},
			ChatMessage{Role: RoleAssistant, Content: ex.BotResponse},
		)
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: message})

	return &CompletionRequest{
		Model:       modelName,
		System:      SystemPrompt,
		Messages:    messages,
		MaxTokens:   1024,
		Temperature: 0.7,
	}
}

func lastUserMessage(req *CompletionRequest) (string, error) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content, nil
		}
	}
	return "", fmt.Errorf("llm: request has no user message")
}
