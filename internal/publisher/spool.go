package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SpoolKey is the list holding envelopes that failed to publish.
const SpoolKey = "audit:publish_spool"

// SpoolEntry is one failed publish waiting for replay.
type SpoolEntry struct {
	EventID   string          `json:"event_id"`
	Subject   string          `json:"subject"`
	Envelope  json.RawMessage `json:"envelope"`
	SpooledAt time.Time       `json:"spooled_at"`
}

// SpoolBackend is the durable ordered list the spool persists entries in.
// store.RedisStore implements it.
type SpoolBackend interface {
	PushBack(ctx context.Context, key string, value []byte) error
	PushFront(ctx context.Context, key string, value []byte) error
	PopFront(ctx context.Context, key string) ([]byte, error)
	ListLen(ctx context.Context, key string) (int64, error)
}

// Spool is a durable holding area for envelopes the broker refused. Entries
// keep publish order: failed publishes append to the tail, replay pops from
// the head.
type Spool struct {
	backend SpoolBackend
}

// NewSpool wraps a backend as a publish spool.
func NewSpool(backend SpoolBackend) *Spool {
	return &Spool{backend: backend}
}

// Add appends an entry to the spool.
func (s *Spool) Add(ctx context.Context, entry SpoolEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling spool entry: %w", err)
	}
	if err := s.backend.PushBack(ctx, SpoolKey, data); err != nil {
		return fmt.Errorf("appending to spool: %w", err)
	}
	return nil
}

// Len returns the number of spooled entries.
func (s *Spool) Len(ctx context.Context) (int64, error) {
	n, err := s.backend.ListLen(ctx, SpoolKey)
	if err != nil {
		return 0, fmt.Errorf("reading spool length: %w", err)
	}
	return n, nil
}

// Drain pops entries in order and hands each to send. On the first send
// failure the entry is pushed back to the head and draining stops, so a
// broker that is still down costs one attempt per cycle. Returns the number
// of entries successfully replayed.
func (s *Spool) Drain(ctx context.Context, send func(context.Context, SpoolEntry) error) (int, error) {
	drained := 0
	for {
		data, err := s.backend.PopFront(ctx, SpoolKey)
		if err != nil {
			return drained, fmt.Errorf("popping spool entry: %w", err)
		}
		if data == nil {
			return drained, nil
		}

		var entry SpoolEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Corrupt entry: it was already popped, so it stays dropped.
			return drained, fmt.Errorf("parsing spool entry: %w", err)
		}

		if err := send(ctx, entry); err != nil {
			if pushErr := s.backend.PushFront(ctx, SpoolKey, data); pushErr != nil {
				return drained, fmt.Errorf("restoring spool entry after send failure: %w", pushErr)
			}
			return drained, fmt.Errorf("replaying spool entry: %w", err)
		}
		drained++
	}
}
