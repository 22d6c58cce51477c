// Package conversation owns the identifier of the conversation a
// transcript belongs to.
package conversation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/pkg/logger"
	"github.com/eunoia-wellness/companion/pkg/metrics"
)

// Controller is the single writer of one transcript's conversation id.
// The id is empty for a new chat and is set at most once; switching to
// another conversation means building a new Controller.
type Controller struct {
	mu       sync.Mutex
	id       string
	userID   string
	notifier notify.Notifier
	logger   *logger.Logger
}

// New creates a controller for userID. existingID is empty for a new chat
// or the id of a conversation opened from history.
func New(userID, existingID string, n notify.Notifier, log *logger.Logger) *Controller {
	if n == nil {
		n = notify.Nop
	}
	return &Controller{
		id:       existingID,
		userID:   userID,
		notifier: n,
		logger:   logger.OrGlobal(log).Named("conversation"),
	}
}

// ID returns the conversation id, or "" when none is associated yet.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// ReportID records the id carried by a terminal stream event. The first
// non-empty id is kept and announced once through the notifier; later
// calls, including duplicate terminal events, change nothing. It reports
// whether this call set the id.
func (c *Controller) ReportID(ctx context.Context, id string) bool {
	if !c.Adopt(id) {
		return false
	}
	c.Announce(ctx, id)
	return true
}

// Adopt sets the id without notifying anyone. It reports whether this call
// set the id; the caller that gets true owns the single Announce.
func (c *Controller) Adopt(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != "" {
		if c.id != id {
			c.logger.Debug("ignoring conversation id for an already started conversation",
				zap.String("conversation_id", c.id),
				zap.String("reported_id", id),
			)
		}
		return false
	}
	c.id = id
	metrics.ConversationsStarted.Inc()
	return true
}

// Announce tells the notifier that id started. It may block for as long as
// the notifier does, so callers must not hold locks across it.
func (c *Controller) Announce(ctx context.Context, id string) {
	err := c.notifier.ConversationStarted(ctx, notify.Started{
		UserID:         c.userID,
		ConversationID: id,
		At:             time.Now(),
	})
	if err != nil {
		c.logger.Warn("conversation started notification failed",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
	}
}
