package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

const (
	// StreamName is the JetStream stream holding companion events.
	StreamName = "COMPANION_EVENTS"

	// SubjectPrefix is the prefix for all companion subjects.
	SubjectPrefix = "companion"
)

// StartedSubject returns the subject a conversation start is published on.
func StartedSubject(userID string) string {
	return fmt.Sprintf("%s.%s.conversation.started", SubjectPrefix, userID)
}

// EnsureStream creates the events stream unless it already exists.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Companion conversation lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Publish is the subset of jetstream.JetStream the publisher needs.
type Publish interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher forwards conversation starts to JetStream.
type Publisher struct {
	js     Publish
	logger *logger.Logger
}

// NewPublisher creates a publisher on js.
func NewPublisher(js Publish, log *logger.Logger) *Publisher {
	return &Publisher{js: js, logger: logger.OrGlobal(log).Named("nats")}
}

// ConversationStarted publishes ev. The conversation id doubles as the
// message id so redelivery of the same start is deduplicated.
func (p *Publisher) ConversationStarted(ctx context.Context, ev notify.Started) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := StartedSubject(ev.UserID)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(ev.ConversationID))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published conversation start",
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)
	return nil
}

var _ notify.Notifier = (*Publisher)(nil)
