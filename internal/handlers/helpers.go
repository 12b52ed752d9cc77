package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/rules"
)

const (
	defaultLimit  = 50
	maxLimit      = 500
	defaultWindow = 24 * time.Hour
	maxBodyBytes  = 1 << 20
)

// requireMethod validates that the request method matches the expected method.
// Returns true if valid, false otherwise (and writes error response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeJSON decodes the request body as JSON into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// requireQueryParam extracts a query parameter and validates it's not empty.
func requireQueryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		http.Error(w, name+" query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// parseLimit returns the limit query parameter, clamped to maxLimit.
func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	return min(limit, maxLimit)
}

// parseWindow reads the window query parameter as a Go duration.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	s := r.URL.Query().Get("window")
	if s == "" {
		return defaultWindow, true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		http.Error(w, "window must be a positive duration such as 24h", http.StatusBadRequest)
		return 0, false
	}
	return d, true
}

// handleError maps domain errors onto HTTP statuses. Returns true if err
// was non-nil and a response was written.
func handleError(w http.ResponseWriter, err error, resource, resourceID string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, alerterr.ErrRuleNotFound), errors.Is(err, alerterr.ErrNotFound):
		http.Error(w, resource+" not found", http.StatusNotFound)
	case rules.IsConfigurationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, alerterr.ErrQueueClosed):
		http.Error(w, "Service is shutting down", http.StatusServiceUnavailable)
	default:
		var pe *alerterr.PersistenceError
		if errors.As(err, &pe) {
			slog.Error("Store error", "error", err, "resource", resource, "resource_id", resourceID)
			http.Error(w, "Store unavailable", http.StatusServiceUnavailable)
			return true
		}
		slog.Error("Request failed", "error", err, "resource", resource, "resource_id", resourceID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}
