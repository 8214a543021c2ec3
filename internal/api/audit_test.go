package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/factumarket/audit-trail/internal/domain"
	"github.com/factumarket/audit-trail/internal/store"
)

// stubStore implements Store with canned data.
type stubStore struct {
	records    []domain.AuditRecord
	lastFilter domain.AuditFilter
	lastEntity string
	lastID     int64
	failWith   error
}

func (s *stubStore) FindByEntity(_ context.Context, entityType string, entityID int64) ([]domain.AuditRecord, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.lastEntity = entityType
	s.lastID = entityID
	return s.records, nil
}

func (s *stubStore) FindByFilters(_ context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.lastFilter = filter
	return s.records, nil
}

func (s *stubStore) GetAuditStats(context.Context) (*store.AuditStats, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return &store.AuditStats{TotalRecords: len(s.records)}, nil
}

func sampleRecords() []domain.AuditRecord {
	entityID := int64(123)
	return []domain.AuditRecord{
		{
			ID:         "a1",
			EventType:  "invoice.fetched",
			Service:    "invoice_service",
			EntityType: "Invoice",
			EntityID:   &entityID,
			Timestamp:  time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
			HTTPMethod: "GET",
			Endpoint:   "/invoices/123",
			Metadata:   json.RawMessage(`{"id":123}`),
			CreatedAt:  time.Date(2025, 6, 15, 10, 30, 1, 0, time.UTC),
		},
	}
}

func doRequest(t *testing.T, s *stubStore, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(s, nil, nil)
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestGetByEntity(t *testing.T) {
	s := &stubStore{records: sampleRecords()}
	rr := doRequest(t, s, http.MethodGet, "/audit/123")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp struct {
		Success   bool                 `json:"success"`
		Count     int                  `json:"count"`
		InvoiceID int64                `json:"factura_id"`
		Data      []domain.AuditRecord `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if !resp.Success {
		t.Error("success should be true")
	}
	if resp.Count != 1 || len(resp.Data) != 1 {
		t.Errorf("count: got %d with %d records", resp.Count, len(resp.Data))
	}
	if resp.InvoiceID != 123 {
		t.Errorf("factura_id: got %d, want 123", resp.InvoiceID)
	}
	if s.lastEntity != "Invoice" {
		t.Errorf("entity type queried: got %q, want Invoice", s.lastEntity)
	}
	if s.lastID != 123 {
		t.Errorf("entity id queried: got %d, want 123", s.lastID)
	}
}

func TestGetByEntity_NonNumericIDNotRouted(t *testing.T) {
	s := &stubStore{records: sampleRecords()}
	rr := doRequest(t, s, http.MethodGet, "/audit/abc")

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestList_PassesFilters(t *testing.T) {
	s := &stubStore{records: sampleRecords()}
	rr := doRequest(t, s, http.MethodGet,
		"/audit?service=invoice_service&entity_type=Invoice&event_type=invoice.fetched&start=2025-01-01&end=2025-01-31")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	f := s.lastFilter
	if f.Service != "invoice_service" || f.EntityType != "Invoice" || f.EventType != "invoice.fetched" {
		t.Errorf("filter fields: got %+v", f)
	}
	if f.Start == nil || !f.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start bound: got %v", f.Start)
	}
	if f.End == nil || !f.End.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end bound: got %v", f.End)
	}

	var resp listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Count != 1 {
		t.Errorf("envelope: success=%v count=%d", resp.Success, resp.Count)
	}
}

func TestList_RFC3339Bounds(t *testing.T) {
	s := &stubStore{}
	rr := doRequest(t, s, http.MethodGet, "/audit?start=2025-01-01T10:00:00Z")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if s.lastFilter.Start == nil || s.lastFilter.Start.Hour() != 10 {
		t.Errorf("start bound: got %v", s.lastFilter.Start)
	}
	if s.lastFilter.End != nil {
		t.Errorf("end bound should be unset, got %v", s.lastFilter.End)
	}
}

func TestList_MalformedDateIsError(t *testing.T) {
	s := &stubStore{records: sampleRecords()}
	rr := doRequest(t, s, http.MethodGet, "/audit?start=not-a-date")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Success {
		t.Error("success should be false")
	}
	if resp.Error == "" {
		t.Error("error message should carry the underlying cause")
	}
}

func TestList_StoreErrorNeverReturnsPartialData(t *testing.T) {
	s := &stubStore{failWith: errors.New("store unreachable")}
	rr := doRequest(t, s, http.MethodGet, "/audit")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["success"] != false {
		t.Error("success should be false")
	}
	if _, hasData := resp["data"]; hasData {
		t.Error("error response must not contain data")
	}
}

func TestStats(t *testing.T) {
	s := &stubStore{records: sampleRecords()}
	rr := doRequest(t, s, http.MethodGet, "/audit/stats")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Data.TotalRecords != 1 {
		t.Errorf("stats envelope: %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	rr := doRequest(t, &stubStore{}, http.MethodGet, "/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status field: got %q", resp.Status)
	}
}
