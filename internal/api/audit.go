package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/factumarket/audit-trail/internal/domain"
)

// AuditReader is the read-only slice of the store the query API uses.
type AuditReader interface {
	FindByEntity(ctx context.Context, entityType string, entityID int64) ([]domain.AuditRecord, error)
	FindByFilters(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
}

// invoiceEntityType scopes the get-by-entity endpoint: the trail is queried
// per invoice by the surrounding system.
const invoiceEntityType = "Invoice"

type AuditHandler struct {
	store AuditReader
}

func NewAuditHandler(s AuditReader) *AuditHandler {
	return &AuditHandler{store: s}
}

type listResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Data    []domain.AuditRecord `json:"data"`
}

type entityResponse struct {
	Success   bool                 `json:"success"`
	Count     int                  `json:"count"`
	InvoiceID int64                `json:"factura_id"`
	Data      []domain.AuditRecord `json:"data"`
}

// GetByEntity returns every record for one invoice, newest first.
// GET /audit/{entity_id}
func (h *AuditHandler) GetByEntity(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.ParseInt(chi.URLParam(r, "entityID"), 10, 64)
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	records, err := h.store.FindByEntity(r.Context(), invoiceEntityType, entityID)
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, entityResponse{
		Success:   true,
		Count:     len(records),
		InvoiceID: entityID,
		Data:      records,
	})
}

// List returns up to 100 records matching the optional filters, newest
// first.
// GET /audit?service=&entity_type=&event_type=&start=&end=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.AuditFilter{
		Service:    r.URL.Query().Get("service"),
		EntityType: r.URL.Query().Get("entity_type"),
		EventType:  r.URL.Query().Get("event_type"),
	}

	start, err := parseDateParam(r.URL.Query().Get("start"))
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("end"))
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}
	filter.Start, filter.End = start, end

	records, err := h.store.FindByFilters(r.Context(), filter)
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, listResponse{
		Success: true,
		Count:   len(records),
		Data:    records,
	})
}

// parseDateParam accepts RFC3339 timestamps or plain dates. Empty means the
// bound is not set.
func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		ts, err = time.Parse("2006-01-02", value)
		if err != nil {
			return nil, err
		}
	}
	return &ts, nil
}
