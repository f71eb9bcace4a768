package router

import (
	"net/http"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/pkg/metrics"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// skipMetrics lists paths left out of request metrics.
var skipMetrics = map[string]bool{
	"/metrics":                 true,
	"/health":                  true,
	"/api/v1/services/metrics": true,
}

// metricsMiddleware exports request counts and latency to Prometheus and
// counts HTTP errors on collector when it is set.
func metricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMetrics[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			metrics.ObserveHTTP(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
			if collector != nil {
				collector.IncrementCustom("http_" + r.Method)
				if wrapped.statusCode >= 500 {
					collector.IncrementCustom("http_5xx")
				}
			}
		})
	}
}
