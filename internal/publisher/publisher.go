// Package publisher is the component producing services embed to emit audit
// events. Publishing is fire-and-forget: the business operation that
// triggered an event must never fail because auditing is degraded.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/factumarket/audit-trail/internal/broker"
	"github.com/factumarket/audit-trail/internal/domain"
)

// Publisher emits event envelopes onto the shared broker stream. Each call
// opens its own connection and closes it before returning — no pooling, so a
// publish is a full round trip on the caller's execution path, bounded by the
// connect and publish timeouts.
type Publisher struct {
	natsURL string
	service string
	spool   *Spool
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a publisher for the named producing service. The spool is
// optional; without one, failed publishes are logged and lost.
func New(natsURL, service string, spool *Spool, logger *slog.Logger) *Publisher {
	return &Publisher{
		natsURL: natsURL,
		service: service,
		spool:   spool,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Publish serializes the payload into an event envelope and sends it with
// the event type as subject. Errors never propagate to the caller: failures
// are logged and, when a spool is configured, parked for asynchronous retry.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to serialize event payload, dropping event",
			"event_type", eventType, "error", err)
		return
	}

	env := domain.EventEnvelope{
		EventType: eventType,
		Service:   p.service,
		Payload:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to serialize event envelope, dropping event",
			"event_type", eventType, "error", err)
		return
	}

	eventID := uuid.NewString()

	if err := p.send(ctx, eventType, eventID, data); err != nil {
		p.logger.Error("failed to publish event",
			"event_type", eventType, "event_id", eventID, "error", err)
		p.spoolFailed(ctx, eventType, eventID, data)
		return
	}

	p.logger.Info("published event",
		"event_type", eventType, "event_id", eventID, "service", p.service)
}

// send performs one full connect-publish-close round trip.
func (p *Publisher) send(ctx context.Context, subject, eventID string, data []byte) error {
	conn, err := nats.Connect(p.natsURL,
		nats.Name(p.service+"-publisher"),
		nats.Timeout(p.timeout),
		// One-shot connection: a broker that is down should fail fast
		// instead of retrying in the caller's path.
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	js, err := jetstream.New(conn)
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{broker.EventIDHeader: []string{eventID}},
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = js.PublishMsg(pubCtx, msg)
	return err
}

// spoolFailed parks an envelope for later replay. A spool write failure is
// the end of the line: the event is logged and dropped.
func (p *Publisher) spoolFailed(ctx context.Context, subject, eventID string, data []byte) {
	if p.spool == nil {
		return
	}

	entry := SpoolEntry{
		EventID:   eventID,
		Subject:   subject,
		Envelope:  data,
		SpooledAt: time.Now().UTC(),
	}
	if err := p.spool.Add(ctx, entry); err != nil {
		p.logger.Error("failed to spool event, event lost",
			"event_type", subject, "event_id", eventID, "error", err)
		return
	}

	p.logger.Warn("event spooled for retry", "event_type", subject, "event_id", eventID)
}

// StartSpoolReplay drains the spool on an interval until the context is
// cancelled. Should be called as a goroutine by the producing service.
func (p *Publisher) StartSpoolReplay(ctx context.Context, interval time.Duration) {
	if p.spool == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.spool.Drain(ctx, func(ctx context.Context, e SpoolEntry) error {
				return p.send(ctx, e.Subject, e.EventID, e.Envelope)
			})
			if err != nil {
				p.logger.Warn("spool replay interrupted", "replayed", n, "error", err)
			} else if n > 0 {
				p.logger.Info("spool replayed", "replayed", n)
			}
		}
	}
}
