// Package broker owns the NATS JetStream topology for the audit pipeline:
// one durable stream capturing every producing service's event subjects, a
// durable pull consumer for the audit worker, and a dead-letter stream for
// messages that exhaust their redeliveries.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// EventStreamName is the shared stream all producing services publish
	// into. Subjects double as routing keys: one wildcard per entity family.
	EventStreamName = "FACTUMARKET_EVENTS"

	// ConsumerName is the durable consumer backing the audit worker.
	ConsumerName = "audit_service_queue"

	// DeadLetterStreamName holds messages the consumer gave up on.
	DeadLetterStreamName = "FACTUMARKET_DLQ"

	// DeadLetterSubjectPrefix prefixes the original subject of a dead letter.
	DeadLetterSubjectPrefix = "audit.dlq."

	// EventIDHeader carries the publisher-assigned envelope ID.
	EventIDHeader = "Event-Id"
)

// EventSubjects are the entity families the audit queue is bound to. Events
// published under any other subject never reach the stream.
var EventSubjects = []string{"customer.*", "invoice.*"}

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns connection settings suitable for a long-lived service.
func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		Name:          "audit-trail",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Client wraps a NATS connection with its JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials NATS and initializes JetStream.
func Connect(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	return &Client{conn: conn, js: js}, nil
}

// JetStream exposes the underlying JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close tears the connection down immediately.
func (c *Client) Close() {
	c.conn.Close()
}

// Drain flushes buffered messages before closing. Used on shutdown so an
// in-flight publish is not lost.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

// EnsureEventStream creates or updates the shared event stream. The declare
// is idempotent, so every producer and the consumer can call it on startup.
func (c *Client) EnsureEventStream(ctx context.Context) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      EventStreamName,
		Subjects:  EventSubjects,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring stream %s: %w", EventStreamName, err)
	}
	return stream, nil
}

// EnsureDeadLetterStream creates or updates the dead-letter stream.
func (c *Client) EnsureDeadLetterStream(ctx context.Context) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      DeadLetterStreamName,
		Subjects:  []string{DeadLetterSubjectPrefix + ">"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring stream %s: %w", DeadLetterStreamName, err)
	}
	return stream, nil
}

// EnsureConsumer creates or updates the durable audit consumer. MaxAckPending
// of 1 pins delivery to strict FIFO for the single sequential worker;
// maxDeliver bounds redelivery of poison messages before they are routed to
// the dead-letter stream by the worker.
func (c *Client) EnsureConsumer(ctx context.Context, maxDeliver int, ackWait time.Duration) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, EventStreamName)
	if err != nil {
		return nil, fmt.Errorf("looking up stream %s: %w", EventStreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ConsumerName,
		Durable:       ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
		MaxAckPending: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s: %w", ConsumerName, err)
	}
	return consumer, nil
}
