package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a service error to a response. Caller mistakes get their
// message back; everything else gets failure plus the upstream details.
func writeFailure(w http.ResponseWriter, err error, failure string) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusBadRequest {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, status, map[string]any{
		"error":   failure,
		"details": apperr.Details(err),
	})
}
