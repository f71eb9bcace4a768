package engine

import (
	"context"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

// ScheduleStore persists the notification schedule.
type ScheduleStore interface {
	// LoadSchedule returns nil when no schedule has been saved.
	LoadSchedule(ctx context.Context) (*schedule.Schedule, error)
	SaveSchedule(ctx context.Context, s schedule.Schedule) error
}

// ValueStore snapshots the last sample per (metric, scope) so trend rules
// survive restarts.
type ValueStore interface {
	// SaveSamples writes a batch; later entries win for the same key.
	SaveSamples(ctx context.Context, samples []signal.Sample) error
	LoadSamples(ctx context.Context) ([]signal.Sample, error)
}

// Publisher emits rule and alert lifecycle events.
type Publisher interface {
	PublishRuleChanged(ctx context.Context, rc *events.RuleChanged) error
	PublishTransition(ctx context.Context, tr *events.AlertTransition) error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishRuleChanged(context.Context, *events.RuleChanged) error     { return nil }
func (NoOpPublisher) PublishTransition(context.Context, *events.AlertTransition) error { return nil }

// Metrics records engine metrics. Implementations must be safe for concurrent use.
type Metrics interface {
	// RecordReceived counts a submitted sample.
	RecordReceived()
	// RecordProcessed records how long one sample took to evaluate.
	RecordProcessed(duration time.Duration)
	// RecordPublished counts a lifecycle event sent to the publisher.
	RecordPublished()
	// RecordError counts a rejected sample or a failed side effect.
	RecordError()
	IncrementCustom(name string)
	// SetActiveAlerts reports the size of the active set.
	SetActiveAlerts(n int)
}

// NoOpMetrics discards metrics.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordReceived()               {}
func (NoOpMetrics) RecordProcessed(time.Duration) {}
func (NoOpMetrics) RecordPublished()              {}
func (NoOpMetrics) RecordError()                  {}
func (NoOpMetrics) IncrementCustom(string)        {}
func (NoOpMetrics) SetActiveAlerts(int)           {}

var (
	_ Publisher = NoOpPublisher{}
	_ Metrics   = NoOpMetrics{}
)
