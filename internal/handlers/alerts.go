package handlers

import (
	"net/http"
	"strings"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// AcknowledgeRequest is the body of an acknowledge request.
type AcknowledgeRequest struct {
	RuleID string `json:"rule_id"`
	Scope  string `json:"scope"`
	UserID string `json:"user_id"`
}

// Acknowledge marks an active alert as seen.
// POST /api/v1/alerts/acknowledge
func (h *Handlers) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req AcknowledgeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RuleID) == "" {
		http.Error(w, "rule_id is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Scope) == "" {
		http.Error(w, "scope is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	ev, err := h.engine.Acknowledge(r.Context(), req.RuleID, req.Scope, req.UserID)
	if handleError(w, err, "acknowledge alert", "rule_id", req.RuleID, "scope", req.Scope) {
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// ListActiveAlerts returns the active set.
// GET /api/v1/alerts/active?rule_id=&metric=&scope=&severity=&state=
func (h *Handlers) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	active := h.engine.ListActiveAlerts(alertstate.Filter{
		RuleID:   q.Get("rule_id"),
		Metric:   q.Get("metric"),
		Scope:    q.Get("scope"),
		Severity: rules.Severity(q.Get("severity")),
		State:    alertstate.State(q.Get("state")),
	})
	if active == nil {
		active = []alertstate.Event{}
	}
	writeJSON(w, http.StatusOK, active)
}
