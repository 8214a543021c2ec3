package audit

import (
	"fmt"
	"strings"

	"github.com/factumarket/audit-trail/internal/domain"
)

// Registry maps event types to Rules up front, so malformed event types are
// caught when a producer family is registered rather than inferred one
// message at a time. Lookups that miss fall back to Derive, which keeps the
// consumer tolerant of event types nobody declared.
type Registry struct {
	rules map[string]Rule
}

// knownActions are the lifecycle actions producing services emit today.
var knownActions = []string{"created", "fetched", "listed", "updated", "deleted"}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry covers the entity families the audit queue is bound to.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of known families cannot fail.
	_ = r.RegisterFamily("customer")
	_ = r.RegisterFamily("invoice")
	return r
}

// RegisterFamily registers every known lifecycle action for an entity.
func (r *Registry) RegisterFamily(entity string) error {
	for _, action := range knownActions {
		if err := r.Register(entity + "." + action); err != nil {
			return err
		}
	}
	return nil
}

// Register validates an event type and stores its derived rule. Event types
// must be "<entity>.<action>" with exactly one dot and non-empty segments.
func (r *Registry) Register(eventType string) error {
	parts := strings.Split(eventType, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid event type %q: want \"<entity>.<action>\"", eventType)
	}
	r.rules[eventType] = Derive(eventType)
	return nil
}

// Lookup returns the registered rule for an event type, falling back to
// on-the-fly derivation for unregistered types.
func (r *Registry) Lookup(eventType string) Rule {
	if rule, ok := r.rules[eventType]; ok {
		return rule
	}
	return Derive(eventType)
}

// BuildRecord turns a validated envelope into the audit record to persist.
// The store fills in ID and CreatedAt.
func (r *Registry) BuildRecord(env *domain.EventEnvelope) (*domain.AuditRecord, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	ts, err := env.Time()
	if err != nil {
		return nil, err
	}

	rule := r.Lookup(env.EventType)

	rec := &domain.AuditRecord{
		EventType:  env.EventType,
		Service:    env.Service,
		EntityType: rule.EntityType,
		Timestamp:  ts,
		HTTPMethod: rule.HTTPMethod,
		Metadata:   env.Payload,
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = []byte("{}")
	}

	if id, ok := env.EntityID(); ok {
		rec.EntityID = &id
	}
	rec.Endpoint = rule.Endpoint(rec.EntityID)

	return rec, nil
}
