package api

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes any payload with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// errorResponse is the uniform failure envelope. Internal errors surface to
// the caller with the underlying message attached; partial results are never
// returned.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func respondInternalError(w http.ResponseWriter, message string, err error) {
	respondJSON(w, http.StatusInternalServerError, errorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
