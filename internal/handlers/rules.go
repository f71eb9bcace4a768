package handlers

import (
	"net/http"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// CreateRule creates a rule. A missing enabled field defaults to true.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	req := rules.Rule{Enabled: true}
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.engine.CreateRule(r.Context(), &req)
	if handleError(w, err, "create rule", "name", req.Name) {
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule returns one rule by rule_id.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}
	rule, err := h.engine.GetRule(r.Context(), ruleID)
	if handleError(w, err, "get rule", "rule_id", ruleID) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListRules lists rules, filtered by metric, scope, severity and enabled.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	filter := rules.Filter{
		Metric:   q.Get("metric"),
		Scope:    q.Get("scope"),
		Severity: rules.Severity(q.Get("severity")),
		Enabled:  optionalBool(r, "enabled"),
	}
	list, err := h.engine.ListRules(r.Context(), filter)
	if handleError(w, err, "list rules") {
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UpdateRule applies a partial update. The body's version, when present,
// must match the stored rule.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}
	var patch rules.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	rule, err := h.engine.UpdateRule(r.Context(), ruleID, patch)
	if handleError(w, err, "update rule", "rule_id", ruleID) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ToggleRuleRequest is the body of a toggle request.
type ToggleRuleRequest struct {
	Enabled *bool `json:"enabled"`
}

// ToggleRule enables or disables a rule.
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}
	var req ToggleRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	rule, err := h.engine.ToggleRule(r.Context(), ruleID, *req.Enabled)
	if handleError(w, err, "toggle rule", "rule_id", ruleID) {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule deletes a rule and resolves its active alerts.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	ruleID, ok := requireQueryParam(w, r, "rule_id")
	if !ok {
		return
	}
	if handleError(w, h.engine.DeleteRule(r.Context(), ruleID), "delete rule", "rule_id", ruleID) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
