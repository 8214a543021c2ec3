package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope is the wire format shared by every producing service.
// Payload is kept raw so the audit trail stores exactly the bytes that
// were published, with no field loss or reordering.
type EventEnvelope struct {
	EventType string          `json:"event_type"`
	Service   string          `json:"service"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// Validate checks the required envelope fields.
func (e *EventEnvelope) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Service == "" {
		return fmt.Errorf("service is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// Time parses the envelope timestamp. Producers emit RFC3339 (ISO-8601).
func (e *EventEnvelope) Time() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing envelope timestamp: %w", err)
	}
	return ts, nil
}

// EntityID extracts the numeric payload.id field, if present.
// Returns (0, false) when the payload has no numeric id.
func (e *EventEnvelope) EntityID() (int64, bool) {
	if len(e.Payload) == 0 {
		return 0, false
	}

	var fields struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(e.Payload, &fields); err != nil || len(fields.ID) == 0 {
		return 0, false
	}

	// json.Number also accepts quoted numeric strings; an id of "5" is not
	// a numeric id, so reject string tokens before decoding.
	if fields.ID[0] == '"' {
		return 0, false
	}

	var id json.Number
	if err := json.Unmarshal(fields.ID, &id); err != nil {
		return 0, false
	}

	n, err := id.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
