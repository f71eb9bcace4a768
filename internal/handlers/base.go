// Package handlers provides the HTTP handlers for the alert-engine API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// DefaultHistoryLimit is used when a history request carries no limit.
const DefaultHistoryLimit = 100

// Handlers wraps the handler dependencies.
type Handlers struct {
	engine        Engine
	metricsReader MetricsReader
}

// NewHandlers creates handlers. reader may be nil when Redis is not configured.
func NewHandlers(eng Engine, reader MetricsReader) *Handlers {
	return &Handlers{
		engine:        eng,
		metricsReader: reader,
	}
}

// requireMethod writes 405 and returns false when r.Method is not method.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeJSON decodes the body into v, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON encodes v before writing any header so an encoding failure
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// requireQueryParam returns a non-empty query parameter, writing 400 when missing.
func requireQueryParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		http.Error(w, name+" query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// optionalBool parses a true/false query parameter. Missing or invalid
// values return nil.
func optionalBool(r *http.Request, name string) *bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return nil
	}
	return &v
}

func parseLimit(r *http.Request) int {
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		return l
	}
	return DefaultHistoryLimit
}
