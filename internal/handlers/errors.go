package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rules.ErrInvalidRule), errors.Is(err, schedule.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrRuleNotFound), errors.Is(err, history.ErrRecordNotFound),
		errors.Is(err, alertstate.ErrNoActiveAlert):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrVersionMismatch), strings.Contains(err.Error(), "already exists"):
		return http.StatusConflict
	case errors.Is(err, signal.ErrMalformedSample):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs err and writes the mapped status. It returns false for a nil error.
func handleError(w http.ResponseWriter, err error, action string, attrs ...any) bool {
	if err == nil {
		return false
	}
	status := statusFor(err)
	args := append([]any{"error", err, "status", status}, attrs...)
	if status >= http.StatusInternalServerError {
		slog.Error("Failed to "+action, args...)
		http.Error(w, "Failed to "+action, status)
		return true
	}
	slog.Warn("Rejected request to "+action, args...)
	http.Error(w, err.Error(), status)
	return true
}
