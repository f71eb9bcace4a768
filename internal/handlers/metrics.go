package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

// ServiceMetricsResponse wraps service snapshots with the known service list.
type ServiceMetricsResponse struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// GetServiceMetrics returns snapshots from Redis.
// GET /api/v1/services/metrics[?service=]
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.metricsReader == nil {
		http.Error(w, "Service metrics are not configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	if name := r.URL.Query().Get("service"); name != "" {
		m, err := h.metricsReader.GetServiceMetrics(ctx, name)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", name, "error", err)
			m = &metrics.ServiceMetrics{ServiceName: name, Status: "offline"}
		}
		writeJSON(w, http.StatusOK, m)
		return
	}

	all, err := h.metricsReader.GetAllServiceMetrics(ctx)
	if err != nil {
		slog.Error("Failed to get all service metrics", "error", err)
		http.Error(w, "Failed to retrieve service metrics", http.StatusInternalServerError)
		return
	}
	for _, name := range metrics.ServiceNames {
		if _, ok := all[name]; !ok {
			all[name] = &metrics.ServiceMetrics{ServiceName: name, Status: "offline"}
		}
	}
	writeJSON(w, http.StatusOK, ServiceMetricsResponse{Services: all, KnownServices: metrics.ServiceNames})
}
