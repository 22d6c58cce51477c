// Package session runs chat requests against one transcript: it submits
// the user message, feeds the reply stream through the parser into the
// transcript, and hands the conversation id to the lifecycle controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/conversation"
	"github.com/eunoia-wellness/companion/internal/model"
	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/internal/stream"
	"github.com/eunoia-wellness/companion/internal/transcript"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
)

var (
	// ErrBusy is returned by Submit while a reply is still streaming.
	ErrBusy = errors.New("session: a reply is already streaming")
	// ErrDiscarded is returned once the session has been aborted.
	ErrDiscarded = errors.New("session: discarded")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("session: message is empty")
	// ErrIncompleteReply means the stream closed without a terminal event.
	ErrIncompleteReply = errors.New("session: reply stream closed before it finished")
)

// Streamer opens a chat reply stream.
type Streamer interface {
	StreamChat(ctx context.Context, message, conversationID string) (io.ReadCloser, error)
}

// State is the request state of a session.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateDiscarded State = "discarded"
)

// Options configure a session.
type Options struct {
	UserID string
	// ConversationID is empty for a new chat.
	ConversationID string
	// History rehydrates the transcript of an existing conversation.
	History  []model.Exchange
	Notifier notify.Notifier
	// Observer receives a transcript snapshot after every mutation. It must
	// not call Abort.
	Observer transcript.Observer
	Logger   *logger.Logger
}

// Session owns one transcript, its conversation controller and at most one
// in-flight stream read. Sessions are never reused across conversations.
type Session struct {
	streamer   Streamer
	transcript *transcript.Transcript
	controller *conversation.Controller
	logger     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc // set while streaming

	// applyMu serialises transcript mutations with Abort so nothing lands
	// after the session is discarded.
	applyMu   sync.Mutex
	discarded atomic.Bool
}

// New creates a session.
func New(streamer Streamer, opts Options) *Session {
	log := logger.OrGlobal(opts.Logger).Named("session").
		WithSession(opts.UserID, opts.ConversationID)

	var tr *transcript.Transcript
	if len(opts.History) > 0 {
		tr = transcript.FromHistory(opts.History, opts.Observer)
	} else {
		tr = transcript.New(opts.Observer)
	}

	return &Session{
		streamer:   streamer,
		transcript: tr,
		controller: conversation.New(opts.UserID, opts.ConversationID, opts.Notifier, log),
		logger:     log,
	}
}

// ConversationID returns the id of the conversation, "" until the first
// reply of a new chat completes.
func (s *Session) ConversationID() string {
	return s.controller.ID()
}

// Messages returns a snapshot of the transcript.
func (s *Session) Messages() []model.Message {
	return s.transcript.Snapshot()
}

// State returns the request state.
func (s *Session) State() State {
	if s.discarded.Load() {
		return StateDiscarded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return StateStreaming
	}
	return StateIdle
}

// Submit sends text and streams the reply into the transcript. It blocks
// until the reply finishes, fails, or the session is aborted. The user
// message stays in the transcript on failure; the reply is replaced by
// transcript.FailureNotice. Returns ErrDiscarded if aborted meanwhile.
func (s *Session) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	streamCtx, cancel, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.finish(cancel)

	if !s.mutate(func() { s.transcript.Begin(text) }) {
		return ErrDiscarded
	}

	metrics.IncrementStreams()
	defer metrics.DecrementStreams()
	start := time.Now()

	outcome, err := s.run(streamCtx, text)
	metrics.RecordStream(outcome, time.Since(start).Seconds())

	if err != nil && !errors.Is(err, ErrDiscarded) {
		s.logger.Warn("chat reply failed", zap.String("outcome", outcome), zap.Error(err))
	}
	return err
}

func (s *Session) run(ctx context.Context, text string) (outcome string, err error) {
	body, err := s.streamer.StreamChat(ctx, text, s.controller.ID())
	if err != nil {
		if s.discarded.Load() {
			return "aborted", ErrDiscarded
		}
		s.mutate(func() { s.transcript.Fail() })
		return "transport_error", fmt.Errorf("failed to start reply stream: %w", err)
	}
	defer body.Close()

	for ev, err := range stream.Read(ctx, body, s.logger) {
		if err != nil {
			if s.discarded.Load() {
				return "aborted", ErrDiscarded
			}
			s.mutate(func() { s.transcript.Fail() })
			return "transport_error", err
		}

		var started string
		applied := s.mutate(func() {
			id, _ := s.transcript.Apply(ev)
			if ev.Kind == model.EventEnd && s.controller.Adopt(id) {
				started = id
			}
		})
		if !applied {
			return "aborted", ErrDiscarded
		}
		if started != "" && !s.discarded.Load() {
			s.controller.Announce(ctx, started)
		}

		switch ev.Kind {
		case model.EventEnd:
			return "completed", nil
		case model.EventError:
			return "stream_error", fmt.Errorf("backend reported: %s", ev.Message)
		}
	}

	if s.discarded.Load() {
		return "aborted", ErrDiscarded
	}
	s.mutate(func() { s.transcript.Fail() })
	return "incomplete", ErrIncompleteReply
}

// Abort cancels the in-flight stream read and discards the session. Events
// still arriving afterwards never reach the transcript. Abort is
// idempotent.
func (s *Session) Abort() {
	s.applyMu.Lock()
	first := !s.discarded.Swap(true)
	s.applyMu.Unlock()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if first {
		s.logger.Debug("session discarded", zap.Bool("streaming", cancel != nil))
	}
}

func (s *Session) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded.Load() {
		return nil, nil, ErrDiscarded
	}
	if s.cancel != nil {
		return nil, nil, ErrBusy
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return streamCtx, cancel, nil
}

func (s *Session) finish(cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// mutate runs fn unless the session was discarded, reporting whether it ran.
func (s *Session) mutate(fn func()) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if s.discarded.Load() {
		return false
	}
	fn()
	return true
}
