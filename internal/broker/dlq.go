package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DeadLetter is one exhausted message parked in the dead-letter stream,
// inspectable and replayable out of band.
type DeadLetter struct {
	EventID  string          `json:"event_id,omitempty"`
	Subject  string          `json:"subject"`
	Envelope json.RawMessage `json:"envelope"`
	Error    string          `json:"error"`
	Attempts uint64          `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// DeadLetterQueue reads and writes the dead-letter stream.
type DeadLetterQueue struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	logger *slog.Logger
}

// NewDeadLetterQueue ensures the dead-letter stream exists and returns a
// queue bound to it.
func NewDeadLetterQueue(ctx context.Context, client *Client, logger *slog.Logger) (*DeadLetterQueue, error) {
	stream, err := client.EnsureDeadLetterStream(ctx)
	if err != nil {
		return nil, err
	}
	return &DeadLetterQueue{js: client.JetStream(), stream: stream, logger: logger}, nil
}

// Write parks an exhausted message. The dead-letter subject embeds the
// original subject so replay knows where to send it back.
func (q *DeadLetterQueue) Write(ctx context.Context, dl DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshaling dead letter: %w", err)
	}

	if _, err := q.js.Publish(ctx, DeadLetterSubjectPrefix+dl.Subject, data); err != nil {
		return fmt.Errorf("publishing dead letter: %w", err)
	}

	q.logger.Warn("message dead-lettered",
		"subject", dl.Subject,
		"event_id", dl.EventID,
		"attempts", dl.Attempts,
		"error", dl.Error,
	)
	return nil
}

// List returns up to limit dead letters without consuming them.
func (q *DeadLetterQueue) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	// Ephemeral consumer: reads everything, acks nothing.
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: DeadLetterSubjectPrefix + ">",
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating list consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetching dead letters: %w", err)
	}

	letters := []DeadLetter{}
	for msg := range batch.Messages() {
		var dl DeadLetter
		if err := json.Unmarshal(msg.Data(), &dl); err != nil {
			q.logger.Error("failed to parse dead letter", "error", err)
			continue
		}
		letters = append(letters, dl)
	}

	return letters, nil
}

// Replay republishes up to limit dead letters to their original subjects and
// removes them from the dead-letter stream. Returns the number replayed.
// Replayed envelopes go through the normal delivery path again, so a message
// that still fails will be dead-lettered anew.
func (q *DeadLetterQueue) Replay(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       "dlq_replay",
		FilterSubject: DeadLetterSubjectPrefix + ">",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return 0, fmt.Errorf("creating replay consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return 0, fmt.Errorf("fetching dead letters: %w", err)
	}

	replayed := 0
	for msg := range batch.Messages() {
		var dl DeadLetter
		if err := json.Unmarshal(msg.Data(), &dl); err != nil {
			q.logger.Error("failed to parse dead letter, skipping", "error", err)
			_ = msg.Ack()
			continue
		}

		if _, err := q.js.Publish(ctx, dl.Subject, dl.Envelope); err != nil {
			// Leave unacked for a later replay attempt.
			q.logger.Error("failed to replay dead letter", "subject", dl.Subject, "error", err)
			continue
		}

		_ = msg.Ack()

		// Acking clears the consumer's pending state but the message stays in
		// the stream; delete it by sequence so List and Stats reflect reality.
		if meta, err := msg.Metadata(); err == nil {
			if err := q.stream.DeleteMsg(ctx, meta.Sequence.Stream); err != nil {
				q.logger.Error("failed to remove replayed dead letter", "error", err)
			}
		}

		q.logger.Info("dead letter replayed", "subject", dl.Subject, "event_id", dl.EventID)
		replayed++
	}

	return replayed, nil
}

// Purge drops every dead letter.
func (q *DeadLetterQueue) Purge(ctx context.Context) error {
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purging dead-letter stream: %w", err)
	}
	return nil
}

// Stats reports dead-letter stream totals.
func (q *DeadLetterQueue) Stats(ctx context.Context) (map[string]any, error) {
	info, err := q.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading dead-letter stream info: %w", err)
	}
	return map[string]any{
		"messages":  info.State.Msgs,
		"bytes":     info.State.Bytes,
		"first_seq": info.State.FirstSeq,
		"last_seq":  info.State.LastSeq,
	}, nil
}
