package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/factumarket/audit-trail/internal/domain"
)

func TestRegistry_Register_Validation(t *testing.T) {
	r := NewRegistry()

	valid := []string{"customer.created", "invoice.fetched", "payment.refunded"}
	for _, et := range valid {
		if err := r.Register(et); err != nil {
			t.Errorf("Register(%q): unexpected error %v", et, err)
		}
	}

	invalid := []string{"", "customer", ".created", "customer.", "a.b.c"}
	for _, et := range invalid {
		if err := r.Register(et); err == nil {
			t.Errorf("Register(%q): expected error, got nil", et)
		}
	}
}

func TestRegistry_Lookup_FallsBackToDerive(t *testing.T) {
	r := DefaultRegistry()

	// Registered type.
	rule := r.Lookup("customer.created")
	if rule.HTTPMethod != "POST" {
		t.Errorf("registered lookup: got method %q, want POST", rule.HTTPMethod)
	}

	// Unregistered type falls back to string derivation.
	rule = r.Lookup("payment.captured")
	if rule.EntityType != "Payment" {
		t.Errorf("fallback lookup: got entity %q, want Payment", rule.EntityType)
	}
	if rule.HTTPMethod != "UNKNOWN" {
		t.Errorf("fallback lookup: got method %q, want UNKNOWN", rule.HTTPMethod)
	}
}

func TestBuildRecord(t *testing.T) {
	r := DefaultRegistry()

	payload := `{"id":123,"customer_id":9,"amount":150000.5,"status":"issued"}`
	env := &domain.EventEnvelope{
		EventType: "invoice.fetched",
		Service:   "invoice_service",
		Payload:   json.RawMessage(payload),
		Timestamp: "2025-06-15T10:30:00Z",
	}

	rec, err := r.BuildRecord(env)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	if rec.EventType != "invoice.fetched" {
		t.Errorf("EventType: got %q", rec.EventType)
	}
	if rec.Service != "invoice_service" {
		t.Errorf("Service: got %q", rec.Service)
	}
	if rec.EntityType != "Invoice" {
		t.Errorf("EntityType: got %q, want Invoice", rec.EntityType)
	}
	if rec.EntityID == nil || *rec.EntityID != 123 {
		t.Errorf("EntityID: got %v, want 123", rec.EntityID)
	}
	if rec.HTTPMethod != "GET" {
		t.Errorf("HTTPMethod: got %q, want GET", rec.HTTPMethod)
	}
	if rec.Endpoint != "/invoices/123" {
		t.Errorf("Endpoint: got %q, want /invoices/123", rec.Endpoint)
	}

	want, _ := time.Parse(time.RFC3339, "2025-06-15T10:30:00Z")
	if !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp: got %v, want %v", rec.Timestamp, want)
	}

	// Metadata must be the payload byte-for-byte: no field loss, no
	// reordering.
	if string(rec.Metadata) != payload {
		t.Errorf("Metadata: got %s, want %s", rec.Metadata, payload)
	}
}

func TestBuildRecord_NoEntityID(t *testing.T) {
	r := DefaultRegistry()

	env := &domain.EventEnvelope{
		EventType: "customer.listed",
		Service:   "customer_service",
		Payload:   json.RawMessage(`{"total":15}`),
		Timestamp: "2025-06-15T10:30:00Z",
	}

	rec, err := r.BuildRecord(env)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}

	if rec.EntityID != nil {
		t.Errorf("EntityID: got %v, want nil", *rec.EntityID)
	}
	if rec.Endpoint != "/customers" {
		t.Errorf("Endpoint: got %q, want /customers", rec.Endpoint)
	}
}

func TestBuildRecord_EmptyPayload(t *testing.T) {
	r := DefaultRegistry()

	env := &domain.EventEnvelope{
		EventType: "customer.listed",
		Service:   "customer_service",
		Timestamp: "2025-06-15T10:30:00Z",
	}

	rec, err := r.BuildRecord(env)
	if err != nil {
		t.Fatalf("BuildRecord: %v", err)
	}
	if string(rec.Metadata) != "{}" {
		t.Errorf("Metadata: got %s, want {}", rec.Metadata)
	}
}

func TestBuildRecord_Errors(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		env  domain.EventEnvelope
	}{
		{
			name: "missing event_type",
			env:  domain.EventEnvelope{Service: "s", Timestamp: "2025-06-15T10:30:00Z"},
		},
		{
			name: "missing service",
			env:  domain.EventEnvelope{EventType: "customer.created", Timestamp: "2025-06-15T10:30:00Z"},
		},
		{
			name: "missing timestamp",
			env:  domain.EventEnvelope{EventType: "customer.created", Service: "s"},
		},
		{
			name: "unparseable timestamp",
			env:  domain.EventEnvelope{EventType: "customer.created", Service: "s", Timestamp: "yesterday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.BuildRecord(&tt.env); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
