package handlers

import (
	"net/http"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// HistoryResponse wraps a history page.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
	Count   int              `json:"count"`
	Limit   int              `json:"limit"`
}

// ListHistory returns records newest first.
// GET /api/v1/history?limit=&rule_id=&metric=&scope=&severity=&kind=&acknowledged=&since=
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	filter := history.Filter{
		RuleID:       q.Get("rule_id"),
		Metric:       q.Get("metric"),
		Scope:        q.Get("scope"),
		Severity:     rules.Severity(q.Get("severity")),
		Kind:         history.Kind(q.Get("kind")),
		Acknowledged: optionalBool(r, "acknowledged"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = t
	}

	limit := parseLimit(r)
	records := h.engine.ListHistory(filter, limit)
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records, Count: len(records), Limit: limit})
}

// ClearHistory empties the history log.
// DELETE /api/v1/history
func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	if handleError(w, h.engine.ClearHistory(r.Context()), "clear history") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
