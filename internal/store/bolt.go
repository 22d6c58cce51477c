package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/eunoia-wellness/companion/internal/model"
)

var (
	conversationsBucket = []byte("conversations")
	riskEventsBucket    = []byte("risk_events")
)

// Bolt is a Store backed by a bbolt file. Each conversation is one JSON
// value keyed by its id. Risk events are keyed by their time-ordered id,
// so a cursor walks them oldest first.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{conversationsBucket, riskEventsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Create(_ context.Context, userID, title string) (*model.Conversation, error) {
	conv := newConversation(userID, title)
	err := b.db.Update(func(tx *bolt.Tx) error {
		return put(tx, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (b *Bolt) Get(_ context.Context, id string) (*model.Conversation, error) {
	var conv *model.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		conv, err = get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (b *Bolt) Append(_ context.Context, id string, ex model.Exchange) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		conv, err := get(tx, id)
		if err != nil {
			return err
		}
		appendExchange(conv, ex)
		return put(tx, conv)
	})
}

func (b *Bolt) ListByUser(_ context.Context, userID string) ([]model.Conversation, error) {
	var out []model.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(_, v []byte) error {
			var conv model.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("failed to decode conversation: %w", err)
			}
			if conv.UserID == userID {
				conv.Exchanges = nil
				out = append(out, conv)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortByUpdated(out)
	return out, nil
}

func (b *Bolt) AddRiskEvent(_ context.Context, ev model.RiskEvent) (model.RiskEvent, error) {
	ev = stampRiskEvent(ev)
	data, err := json.Marshal(ev)
	if err != nil {
		return model.RiskEvent{}, fmt.Errorf("failed to encode risk event: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(riskEventsBucket).Put([]byte(ev.ID), data)
	})
	if err != nil {
		return model.RiskEvent{}, err
	}
	return ev, nil
}

func (b *Bolt) RiskEventsByUser(_ context.Context, userID string) ([]model.RiskEvent, error) {
	var out []model.RiskEvent
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(riskEventsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ev model.RiskEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("failed to decode risk event: %w", err)
			}
			if ev.UserID == userID {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func get(tx *bolt.Tx, id string) (*model.Conversation, error) {
	v := tx.Bucket(conversationsBucket).Get([]byte(id))
	if v == nil {
		return nil, ErrNotFound
	}
	var conv model.Conversation
	if err := json.Unmarshal(v, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, nil
}

func put(tx *bolt.Tx, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	return tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data)
}

var _ Store = (*Bolt)(nil)
