// Package metrics collects alert-engine counters. Snapshots are written to
// Redis for the services metrics endpoint and mirrored to Prometheus.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// MetricsKeyPrefix is the Redis key prefix for service metrics.
	MetricsKeyPrefix = "metrics:"
	// MetricsTTL is how long a snapshot stays in Redis if not refreshed.
	MetricsTTL = 2 * time.Minute
	// DefaultReportInterval is how often snapshots are written.
	DefaultReportInterval = 30 * time.Second

	scanBatch = 100
)

// ServiceMetrics is one service's snapshot.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // healthy, unhealthy or offline

	SamplesReceived  uint64 `json:"samples_received"`
	SamplesProcessed uint64 `json:"samples_processed"`
	EventsPublished  uint64 `json:"events_published"`
	ProcessingErrors uint64 `json:"processing_errors"`
	ActiveAlerts     int64  `json:"active_alerts"`

	SamplesPerSecond       float64 `json:"samples_per_second"`
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector counts what one service does. All methods are safe for
// concurrent use; a nil Redis client disables reporting.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	samplesReceived  atomic.Uint64
	samplesProcessed atomic.Uint64
	eventsPublished  atomic.Uint64
	processingErrors atomic.Uint64
	activeAlerts     atomic.Int64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	// guarded by rateMu
	rateMu             sync.Mutex
	lastReportTime     time.Time
	lastProcessedCount uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a collector for serviceName.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets how often snapshots are written to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

// Start writes a snapshot every report interval until ctx is done or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background())
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background())
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop ends reporting after a final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived counts a submitted sample.
func (c *Collector) RecordReceived() {
	c.samplesReceived.Add(1)
	samplesReceived.WithLabelValues(c.serviceName).Inc()
}

// RecordProcessed counts an evaluated sample and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.samplesProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
	processingDuration.WithLabelValues(c.serviceName).Observe(latency.Seconds())
}

// RecordPublished counts a lifecycle or rule event handed to Kafka.
func (c *Collector) RecordPublished() {
	c.eventsPublished.Add(1)
	eventsPublished.WithLabelValues(c.serviceName).Inc()
}

// RecordError counts a rejected sample or failed side effect.
func (c *Collector) RecordError() {
	c.processingErrors.Add(1)
	processingErrors.WithLabelValues(c.serviceName).Inc()
}

// SetActiveAlerts records the size of the active set.
func (c *Collector) SetActiveAlerts(n int) {
	c.activeAlerts.Store(int64(n))
	activeAlerts.WithLabelValues(c.serviceName).Set(float64(n))
}

// IncrementCustom increments a named counter.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds value to a named counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
	customEvents.WithLabelValues(c.serviceName, name).Add(float64(value))
}

// GetSnapshot returns the current counters without writing them.
func (c *Collector) GetSnapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.samplesProcessed.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 && processed >= c.lastProcessedCount {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 "healthy",
		SamplesReceived:        c.samplesReceived.Load(),
		SamplesProcessed:       processed,
		EventsPublished:        c.eventsPublished.Load(),
		ProcessingErrors:       c.processingErrors.Load(),
		ActiveAlerts:           c.activeAlerts.Load(),
		SamplesPerSecond:       rate,
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         custom,
	}
}

func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.GetSnapshot()

	c.rateMu.Lock()
	c.lastReportTime = snapshot.LastUpdated
	c.lastProcessedCount = snapshot.SamplesProcessed
	c.rateMu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := MetricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, MetricsTTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}
	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

// Reader reads service snapshots back from Redis.
type Reader struct {
	redis *redis.Client
}

// NewReader creates a reader.
func NewReader(redisClient *redis.Client) *Reader {
	return &Reader{redis: redisClient}
}

// GetServiceMetrics returns the snapshot for serviceName. A snapshot older
// than MetricsTTL is reported unhealthy.
func (r *Reader) GetServiceMetrics(ctx context.Context, serviceName string) (*ServiceMetrics, error) {
	data, err := r.redis.Get(ctx, MetricsKeyPrefix+serviceName).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no metrics found for service: %s", serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	return decodeSnapshot(data, time.Now())
}

func decodeSnapshot(data []byte, now time.Time) (*ServiceMetrics, error) {
	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if now.Sub(m.LastUpdated) > MetricsTTL {
		m.Status = "unhealthy"
	}
	return &m, nil
}

// GetAllServiceMetrics returns every snapshot in Redis keyed by service name.
func (r *Reader) GetAllServiceMetrics(ctx context.Context) (map[string]*ServiceMetrics, error) {
	result := make(map[string]*ServiceMetrics)
	iter := r.redis.Scan(ctx, 0, MetricsKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		serviceName := iter.Val()[len(MetricsKeyPrefix):]
		m, err := r.GetServiceMetrics(ctx, serviceName)
		if err != nil {
			slog.Warn("Failed to read metrics for service", "service", serviceName, "error", err)
			continue
		}
		result[serviceName] = m
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list metrics keys: %w", err)
	}
	return result, nil
}

// ServiceNames lists the services the metrics endpoint always reports.
var ServiceNames = []string{"alert-engine"}
