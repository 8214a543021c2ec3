package api

import (
	"context"
	"net/http"

	"github.com/factumarket/audit-trail/internal/store"
)

// StatsReader computes aggregate counts over the trail.
type StatsReader interface {
	GetAuditStats(ctx context.Context) (*store.AuditStats, error)
}

type StatsHandler struct {
	store StatsReader
}

func NewStatsHandler(s StatsReader) *StatsHandler {
	return &StatsHandler{store: s}
}

type statsResponse struct {
	Success bool              `json:"success"`
	Data    *store.AuditStats `json:"data"`
}

// Get returns aggregate audit statistics.
// GET /audit/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetAuditStats(r.Context())
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, statsResponse{Success: true, Data: stats})
}
