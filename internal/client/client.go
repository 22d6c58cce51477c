// Package client talks to the companion backend over REST and its chat
// event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/identity"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
	"github.com/eunoia-wellness/companion/pkg/tracing"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response received before any streaming started.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Config holds client settings.
type Config struct {
	BaseURL string
	// RequestTimeout bounds the JSON endpoints. Chat streams are bounded
	// only by their context.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Client is the backend API client for one signed-in user.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	identity identity.Identity
	logger   *logger.Logger
}

// New creates a client acting as id.
func New(cfg Config, id identity.Identity, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(base.String(), "/"),
		timeout:  timeout,
		http:     httpClient,
		identity: id,
		logger:   logger.OrGlobal(log).Named("client").With(zap.String("user_id", id.UserID)),
	}, nil
}

// Identity returns the identity the client acts as.
func (c *Client) Identity() identity.Identity {
	return c.identity
}

// StreamChat posts a user message and returns the reply event stream.
// The caller must close the returned body; cancelling ctx aborts the read.
func (c *Client) StreamChat(ctx context.Context, message, conversationID string) (io.ReadCloser, error) {
	body, err := json.Marshal(model.ChatRequest{
		UserID:         c.identity.UserID,
		Message:        message,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.do(ctx, "chat", http.MethodPost, "/api/chat", bytes.NewReader(body),
		attribute.String("conversation_id", conversationID))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Conversation fetches the persisted exchanges of a conversation.
func (c *Client) Conversation(ctx context.Context, conversationID string) ([]model.Exchange, error) {
	var out model.ConversationResponse
	path := "/api/conversation/" + url.PathEscape(conversationID)
	if err := c.getJSON(ctx, "conversation", path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// History lists the user's past conversations.
func (c *Client) History(ctx context.Context) ([]model.HistoryEntry, error) {
	var out model.HistoryResponse
	path := "/api/chat/history/" + url.PathEscape(c.identity.UserID)
	if err := c.getJSON(ctx, "history", path, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// ReportRiskEvent tells the backend the user may be at risk and returns
// the id of the recorded event.
func (c *Client) ReportRiskEvent(ctx context.Context, level model.RiskLevel, message string) (string, error) {
	var out model.RiskEventResponse
	in := model.RiskEvent{UserID: c.identity.UserID, RiskLevel: level, Message: message}
	if err := c.callJSON(ctx, "risk_event", http.MethodPost, "/api/safety/risk-event", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, v any) error {
	return c.callJSON(ctx, endpoint, http.MethodGet, path, nil, v)
}

// callJSON sends in, when non-nil, as the JSON body and decodes the
// response into out.
func (c *Client) callJSON(ctx context.Context, endpoint, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, endpoint, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// do sends the request and checks the status. On success the caller owns
// the response body.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, attrs ...attribute.KeyValue) (*http.Response, error) {
	ctx, span := tracing.Tracer().Start(ctx, "client."+endpoint)
	defer span.End()
	span.SetAttributes(append(attrs,
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)...)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if endpoint == "chat" {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if auth := c.identity.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordClientRequest(endpoint, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	metrics.RecordClientRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var errBody model.ErrorResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}

		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Warn("backend request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Message),
		)
		return nil, apiErr
	}

	return resp, nil
}
