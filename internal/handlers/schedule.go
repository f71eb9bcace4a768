package handlers

import (
	"net/http"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
)

// GetSchedule returns the schedule in effect.
func (h *Handlers) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Schedule())
}

// SetSchedule replaces the schedule. Omitted fields take their defaults.
func (h *Handlers) SetSchedule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}
	s := schedule.Default()
	if !decodeJSON(w, r, &s) {
		return
	}
	if handleError(w, h.engine.SetSchedule(r.Context(), s), "update schedule") {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Schedule())
}
