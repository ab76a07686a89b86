package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/runmetrics/runmetrics/internal/metrics"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a query error to its HTTP status: caller mistakes are 400,
// unknown kinds 404, anything else 500.
func statusFor(err error) int {
	switch {
	case metrics.IsInvalidParams(err):
		return http.StatusBadRequest
	case errors.Is(err, metrics.ErrUnknownKind):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
