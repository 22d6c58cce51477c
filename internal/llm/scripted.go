package llm

import (
	"context"
	"strings"
	"time"
)

// ScriptedClient replies with canned supportive text, one word per token.
// It needs no API key and is deterministic.
type ScriptedClient struct {
	delay time.Duration
}

// NewScriptedClient creates a scripted client pausing delay between tokens.
func NewScriptedClient(delay time.Duration) *ScriptedClient {
	return &ScriptedClient{delay: delay}
}

// Name returns the provider name.
func (c *ScriptedClient) Name() string {
	return string(ProviderScripted)
}

var scriptedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"anxious", "anxiety", "nervous", "panic", "worried"},
		reply: "That sounds really hard. When worry builds up, try breathing in for four counts, " +
			"holding for four, and breathing out for six. What is on your mind right now?",
	},
	{
		keywords: []string{"sad", "down", "lonely", "alone", "cry"},
		reply: "I'm sorry you're feeling this way. You don't have to carry it alone. " +
			"Would it help to talk about what happened today?",
	},
	{
		keywords: []string{"exam", "school", "test", "homework", "study"},
		reply: "School pressure can feel like a lot. Breaking the work into small steps " +
			"and taking short breaks often helps. Which part feels biggest right now?",
	},
	{
		keywords: []string{"sleep", "tired", "insomnia"},
		reply: "Rest matters so much. A calm routine before bed, like dimming screens and " +
			"slow breathing, can make sleep easier. How have your nights been lately?",
	},
}

const defaultScriptedReply = "Thank you for sharing that with me. I'm here to listen. " +
	"How are you feeling about it right now?"

// Script returns the reply the scripted client gives to message.
func Script(message string) string {
	lower := strings.ToLower(message)
	for _, s := range scriptedReplies {
		for _, k := range s.keywords {
			if strings.Contains(lower, k) {
				return s.reply
			}
		}
	}
	return defaultScriptedReply
}

// CompleteStream emits the scripted reply to the last user message.
func (c *ScriptedClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	message, err := lastUserMessage(req)
	if err != nil {
		return nil, err
	}
	reply := Script(message)

	for i, token := range strings.SplitAfter(reply, " ") {
		if i > 0 && c.delay > 0 {
			timer := time.NewTimer(c.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := callback(token, i); err != nil {
			return nil, err
		}
	}

	return &CompletionResponse{
		Content:    reply,
		Model:      string(ProviderScripted),
		StopReason: "end_turn",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
