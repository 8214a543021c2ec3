package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/factumarket/audit-trail/internal/broker"
)

// DeadLetterQueue exposes the parked-message operations the API serves.
type DeadLetterQueue interface {
	List(ctx context.Context, limit int) ([]broker.DeadLetter, error)
	Replay(ctx context.Context, limit int) (int, error)
	Purge(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
}

type DeadLetterHandler struct {
	dlq DeadLetterQueue
}

func NewDeadLetterHandler(dlq DeadLetterQueue) *DeadLetterHandler {
	return &DeadLetterHandler{dlq: dlq}
}

type deadLetterListResponse struct {
	Success bool                `json:"success"`
	Count   int                 `json:"count"`
	Data    []broker.DeadLetter `json:"data"`
}

// List returns parked messages without consuming them.
// GET /dead-letters?limit=
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	letters, err := h.dlq.List(r.Context(), limit)
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, deadLetterListResponse{
		Success: true,
		Count:   len(letters),
		Data:    letters,
	})
}

// Replay republishes parked messages to their original subjects.
// POST /dead-letters/replay?limit=
func (h *DeadLetterHandler) Replay(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	replayed, err := h.dlq.Replay(r.Context(), limit)
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"replayed": replayed,
	})
}

// Purge drops every parked message.
// DELETE /dead-letters
func (h *DeadLetterHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if err := h.dlq.Purge(r.Context()); err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Stats reports dead-letter stream totals.
// GET /dead-letters/stats
func (h *DeadLetterHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dlq.Stats(r.Context())
	if err != nil {
		respondInternalError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

func parseLimit(value string) int {
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
