package handlers

import (
	"net/http"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
)

// SubmitSample evaluates one metric sample.
// POST /api/v1/samples
func (h *Handlers) SubmitSample(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req events.SampleReceived
	if !decodeJSON(w, r, &req) {
		return
	}
	sample := req.ToSample()
	if handleError(w, h.engine.SubmitSample(r.Context(), sample), "submit sample", "metric", sample.Metric, "scope", sample.Scope) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
