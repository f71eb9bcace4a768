package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_samples_received_total",
			Help: "Total number of metric samples submitted",
		},
		[]string{"service"},
	)

	processingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alerting_sample_processing_duration_seconds",
			Help:    "Time taken to evaluate one sample against its rules",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_events_published_total",
			Help: "Total number of rule and lifecycle events published",
		},
		[]string{"service"},
	)

	processingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_processing_errors_total",
			Help: "Total number of rejected samples and failed side effects",
		},
		[]string{"service"},
	)

	activeAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alerting_active_alerts",
			Help: "Current number of active alert events",
		},
		[]string{"service"},
	)

	customEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_events_total",
			Help: "Named engine events such as alerts_triggered",
		},
		[]string{"service", "name"},
	)

	// Dispatch metrics
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_dispatch_outcomes_total",
			Help: "Triggers offered to the dispatcher by outcome",
		},
		[]string{"outcome"}, // dispatched, grouped, suppressed, closed
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_channel_deliveries_total",
			Help: "Channel deliveries by result",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	ChannelDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alerting_channel_delivery_duration_seconds",
			Help:    "Time taken by one channel delivery including retries",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerting_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alerting_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, endpoint string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, code).Observe(d.Seconds())
}

// ObserveDelivery records one channel delivery.
func ObserveDelivery(channel string, ok bool, d time.Duration) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	ChannelDeliveries.WithLabelValues(channel, status).Inc()
	ChannelDeliveryDuration.WithLabelValues(channel).Observe(d.Seconds())
}
