package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kunho817/shattered-moon-mcp/internal/domain/depgraph"
	"github.com/kunho817/shattered-moon-mcp/internal/port/decomposer"
	"github.com/kunho817/shattered-moon-mcp/internal/service"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service and domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, service.ErrGraphNotFound), errors.Is(err, service.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, depgraph.ErrCycleDetected):
		writeError(w, http.StatusConflict, "graph has unresolved circular dependencies")
	case errors.Is(err, depgraph.ErrDanglingEdge), errors.Is(err, depgraph.ErrDuplicateNode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, decomposer.ErrOracleUnavailable):
		writeError(w, http.StatusServiceUnavailable, "decomposition oracle unavailable")
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
