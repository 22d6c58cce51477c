package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eunoia-wellness/companion/internal/notify"
	"github.com/eunoia-wellness/companion/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Started
	err    error
}

func (r *recorder) ConversationStarted(_ context.Context, ev notify.Started) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestReportIDIsIdempotent(t *testing.T) {
	rec := &recorder{}
	c := New("u1", "", rec, logger.NewNop())
	assert.Empty(t, c.ID())

	assert.True(t, c.ReportID(context.Background(), "A"))
	assert.False(t, c.ReportID(context.Background(), "B"))
	assert.False(t, c.ReportID(context.Background(), "A"))

	assert.Equal(t, "A", c.ID())
	if assert.Len(t, rec.events, 1) {
		assert.Equal(t, "A", rec.events[0].ConversationID)
		assert.Equal(t, "u1", rec.events[0].UserID)
	}
}

func TestExistingConversationNeverAnnounces(t *testing.T) {
	rec := &recorder{}
	c := New("u1", "old", rec, logger.NewNop())

	assert.False(t, c.ReportID(context.Background(), "old"))
	assert.Equal(t, "old", c.ID())
	assert.Empty(t, rec.events)
}

func TestEmptyIDIsIgnored(t *testing.T) {
	rec := &recorder{}
	c := New("u1", "", rec, logger.NewNop())

	assert.False(t, c.ReportID(context.Background(), ""))
	assert.Empty(t, c.ID())
	assert.Empty(t, rec.events)
}

func TestNotifierFailureStillSetsID(t *testing.T) {
	rec := &recorder{err: errors.New("bus down")}
	c := New("u1", "", rec, logger.NewNop())

	assert.True(t, c.ReportID(context.Background(), "c1"))
	assert.Equal(t, "c1", c.ID())
}

func TestConcurrentReportsAnnounceOnce(t *testing.T) {
	rec := &recorder{}
	c := New("u1", "", rec, logger.NewNop())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			c.ReportID(context.Background(), id)
		}(id)
	}
	wg.Wait()

	assert.Len(t, rec.events, 1)
	assert.Equal(t, rec.events[0].ConversationID, c.ID())
}

func TestNilNotifier(t *testing.T) {
	c := New("u1", "", nil, nil)
	assert.True(t, c.ReportID(context.Background(), "c1"))
}

func TestAdoptDoesNotNotify(t *testing.T) {
	rec := &recorder{}
	c := New("u1", "", rec, logger.NewNop())

	assert.True(t, c.Adopt("c1"))
	assert.False(t, c.Adopt("c1"))
	assert.Equal(t, "c1", c.ID())
	assert.Empty(t, rec.events)

	c.Announce(context.Background(), "c1")
	if assert.Len(t, rec.events, 1) {
		assert.Equal(t, "c1", rec.events[0].ConversationID)
	}
}
