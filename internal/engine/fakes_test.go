package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

// fakeDeliverer acknowledges every delivery.
type fakeDeliverer struct {
	mu    sync.Mutex
	calls []rules.Channel
}

func (f *fakeDeliverer) Deliver(ctx context.Context, c rules.Channel, endpoint string, p *channel.Payload) channel.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return channel.Result{Channel: c, Attempts: 1}
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakePublisher records published events.
type fakePublisher struct {
	mu          sync.Mutex
	ruleChanges []*events.RuleChanged
	transitions []*events.AlertTransition
	err         error
}

func (f *fakePublisher) PublishRuleChanged(ctx context.Context, rc *events.RuleChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ruleChanges = append(f.ruleChanges, rc)
	return nil
}

func (f *fakePublisher) PublishTransition(ctx context.Context, tr *events.AlertTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.transitions = append(f.transitions, tr)
	return nil
}

func (f *fakePublisher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.transitions))
	for _, tr := range f.transitions {
		out = append(out, tr.Kind)
	}
	return out
}

func (f *fakePublisher) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ruleChanges))
	for _, rc := range f.ruleChanges {
		out = append(out, rc.Action)
	}
	return out
}

// fakeScheduleStore keeps the schedule in memory.
type fakeScheduleStore struct {
	saved   *schedule.Schedule
	saves   int
	saveErr error
}

func (f *fakeScheduleStore) LoadSchedule(ctx context.Context) (*schedule.Schedule, error) {
	return f.saved, nil
}

func (f *fakeScheduleStore) SaveSchedule(ctx context.Context, s schedule.Schedule) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = &s
	return nil
}

// fakeValueStore keeps samples in memory.
type fakeValueStore struct {
	mu      sync.Mutex
	samples []signal.Sample
	batches int
	saveErr error
}

func (f *fakeValueStore) SaveSamples(ctx context.Context, samples []signal.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.samples = append(f.samples, samples...)
	return nil
}

func (f *fakeValueStore) LoadSamples(ctx context.Context) ([]signal.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]signal.Sample(nil), f.samples...), nil
}

// fakeMetrics counts calls.
type fakeMetrics struct {
	mu        sync.Mutex
	received  int
	processed int
	published int
	errors    int
	active    int
	custom    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{custom: make(map[string]int)}
}

func (f *fakeMetrics) RecordReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++
}

func (f *fakeMetrics) RecordProcessed(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}

func (f *fakeMetrics) RecordPublished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
}

func (f *fakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom[name]++
}

func (f *fakeMetrics) SetActiveAlerts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = n
}
