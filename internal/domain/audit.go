package domain

import (
	"encoding/json"
	"time"
)

// AuditRecord is the immutable, queryable representation of one delivered
// event. The store assigns ID and CreatedAt on insert; everything else is
// copied or derived from the envelope. Records are never updated or deleted.
type AuditRecord struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	Service    string          `json:"service"`
	EntityType string          `json:"entity_type"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	HTTPMethod string          `json:"http_method"`
	Endpoint   string          `json:"endpoint"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditFilter narrows a list query. Zero-value fields are ignored.
// Start and End, when both set, bound Timestamp inclusively.
type AuditFilter struct {
	Service    string
	EntityType string
	EventType  string
	Start      *time.Time
	End        *time.Time
	Limit      int
}
