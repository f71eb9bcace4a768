// Package router wires the alert-engine HTTP routes and middleware.
package router

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/handlers"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

// Router wraps the mux and its handlers.
type Router struct {
	mux       *http.ServeMux
	handlers  *handlers.Handlers
	collector *metrics.Collector
}

// NewRouter creates a router with every route registered. collector may be nil.
func NewRouter(h *handlers.Handlers, collector *metrics.Collector) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		handlers:  h,
		collector: collector,
	}
	r.setupRoutes()
	return r
}

// Handler returns the mux wrapped in the metrics and CORS middleware.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.collector)(r.mux))
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/api/v1/samples", r.handlers.SubmitSample)

	// Rules
	r.mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateRule(w, req)
		case http.MethodGet:
			if req.URL.Query().Get("rule_id") != "" {
				r.handlers.GetRule(w, req)
			} else {
				r.handlers.ListRules(w, req)
			}
		default:
			methodNotAllowed(w)
		}
	})
	r.mux.HandleFunc("/api/v1/rules/update", r.handlers.UpdateRule)
	r.mux.HandleFunc("/api/v1/rules/toggle", r.handlers.ToggleRule)
	r.mux.HandleFunc("/api/v1/rules/delete", r.handlers.DeleteRule)

	// Alerts
	r.mux.HandleFunc("/api/v1/alerts/acknowledge", r.handlers.Acknowledge)
	r.mux.HandleFunc("/api/v1/alerts/active", r.handlers.ListActiveAlerts)

	r.mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			r.handlers.ListHistory(w, req)
		case http.MethodDelete:
			r.handlers.ClearHistory(w, req)
		default:
			methodNotAllowed(w)
		}
	})

	r.mux.HandleFunc("/api/v1/schedule", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			r.handlers.GetSchedule(w, req)
		case http.MethodPut:
			r.handlers.SetSchedule(w, req)
		default:
			methodNotAllowed(w)
		}
	})

	r.mux.HandleFunc("/api/v1/services/metrics", r.handlers.GetServiceMetrics)
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// NewServer creates the HTTP server for port.
func NewServer(port string, h *handlers.Handlers, collector *metrics.Collector) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(h, collector).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
