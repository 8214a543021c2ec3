// Package consumer runs the audit worker: a single sequential loop that
// pulls one event at a time from the durable queue, derives an audit record,
// persists it, and acks or naks based on the outcome.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/factumarket/audit-trail/internal/audit"
	"github.com/factumarket/audit-trail/internal/broker"
	"github.com/factumarket/audit-trail/internal/domain"
)

// RecordStore is the slice of the audit store the consumer writes to.
type RecordStore interface {
	InsertAuditRecord(ctx context.Context, rec *domain.AuditRecord) (*domain.AuditRecord, error)
}

// DeadLetterWriter parks messages that exhausted their redeliveries.
type DeadLetterWriter interface {
	Write(ctx context.Context, dl broker.DeadLetter) error
}

// Broadcaster pushes stored records to live feed clients.
type Broadcaster interface {
	BroadcastRecord(rec *domain.AuditRecord)
}

// Consumer processes messages strictly one at a time: parse, derive,
// persist, then ack — or nak with a delay so the broker redelivers. After
// maxDeliver attempts a message is dead-lettered instead of redelivered,
// which keeps a poison message from looping forever.
type Consumer struct {
	consumer   jetstream.Consumer
	store      RecordStore
	registry   *audit.Registry
	dlq        DeadLetterWriter
	hub        Broadcaster
	logger     *slog.Logger
	maxDeliver int
	nakDelay   time.Duration
	fetchWait  time.Duration
}

// New assembles the audit worker. hub may be nil when no live feed is wired.
func New(c jetstream.Consumer, store RecordStore, registry *audit.Registry, dlq DeadLetterWriter, hub Broadcaster, logger *slog.Logger, maxDeliver int) *Consumer {
	return &Consumer{
		consumer:   c,
		store:      store,
		registry:   registry,
		dlq:        dlq,
		hub:        hub,
		logger:     logger,
		maxDeliver: maxDeliver,
		nakDelay:   5 * time.Second,
		fetchWait:  2 * time.Second,
	}
}

// Run blocks until the context is cancelled. The in-flight message finishes
// processing; anything unacked is redelivered by the broker later.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("audit consumer started", "queue", broker.ConsumerName)

	for {
		if ctx.Err() != nil {
			c.logger.Info("audit consumer stopping")
			return
		}

		batch, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(c.fetchWait))
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to fetch from queue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		c.drainBatch(ctx, batch)
	}
}

// drainBatch processes every message the fetch delivered. A batch can
// terminate early with an error after yielding some messages; surface it so
// a failing poll is distinguishable from an empty one.
func (c *Consumer) drainBatch(ctx context.Context, batch jetstream.MessageBatch) {
	for msg := range batch.Messages() {
		c.process(ctx, msg)
	}
	if err := batch.Error(); err != nil {
		c.logger.Error("fetch batch ended early", "error", err)
	}
}

// process handles exactly one delivery attempt.
func (c *Consumer) process(ctx context.Context, msg jetstream.Msg) {
	eventID := msg.Headers().Get(broker.EventIDHeader)

	rec, err := c.handle(ctx, msg.Data())
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			// The broker will redeliver and a duplicate record will be
			// written; audit records are at-least-once, not exactly-once.
			c.logger.Error("failed to ack message", "subject", msg.Subject(), "error", ackErr)
			return
		}
		c.logger.Info("event stored",
			"event_type", rec.EventType, "event_id", eventID, "record_id", rec.ID)
		if c.hub != nil {
			c.hub.BroadcastRecord(rec)
		}
		return
	}

	attempts := uint64(1)
	if meta, metaErr := msg.Metadata(); metaErr == nil {
		attempts = meta.NumDelivered
	}

	if int(attempts) >= c.maxDeliver {
		dl := broker.DeadLetter{
			EventID:  eventID,
			Subject:  msg.Subject(),
			Envelope: msg.Data(),
			Error:    err.Error(),
			Attempts: attempts,
			FailedAt: time.Now().UTC(),
		}
		if dlqErr := c.dlq.Write(ctx, dl); dlqErr != nil {
			// Could not park it; keep it on the queue rather than lose it.
			c.logger.Error("failed to dead-letter message, requeueing",
				"subject", msg.Subject(), "error", dlqErr)
			c.nak(msg)
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Error("failed to ack dead-lettered message", "error", ackErr)
		}
		return
	}

	c.logger.Error("failed to process event, requeueing",
		"subject", msg.Subject(), "event_id", eventID, "attempt", attempts, "error", err)
	c.nak(msg)
}

// handle parses the envelope, derives the record, and persists it.
func (c *Consumer) handle(ctx context.Context, body []byte) (*domain.AuditRecord, error) {
	var env domain.EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	rec, err := c.registry.BuildRecord(&env)
	if err != nil {
		return nil, err
	}

	return c.store.InsertAuditRecord(ctx, rec)
}

func (c *Consumer) nak(msg jetstream.Msg) {
	if err := msg.NakWithDelay(c.nakDelay); err != nil {
		c.logger.Error("failed to nak message", "subject", msg.Subject(), "error", err)
	}
}
