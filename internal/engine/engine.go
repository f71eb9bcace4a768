// Package engine runs the alert loop: it evaluates samples against rules,
// drives the alert state machine and hands triggers to the dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/dispatch"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/events"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

const (
	// DefaultTickInterval is how often suppressed triggers are offered again.
	DefaultTickInterval = 30 * time.Second
	// FlushInterval is how often changed last values are written to the ValueStore.
	FlushInterval = time.Second
	flushTimeout  = 5 * time.Second
)

// Deps holds the engine's collaborators. Store, Coordinator and History are
// required; the rest fall back to in-memory or no-op implementations.
type Deps struct {
	Store       rules.Store
	Coordinator *dispatch.Coordinator
	History     *history.Log
	Machine     *alertstate.Machine
	Cache       *signal.LastValueCache
	Schedules   ScheduleStore
	Values      ValueStore
	Publisher   Publisher
	Metrics     Metrics
	Now         func() time.Time
}

// Engine is the alert loop.
type Engine struct {
	store       rules.Store
	coordinator *dispatch.Coordinator
	history     *history.Log
	machine     *alertstate.Machine
	cache       *signal.LastValueCache
	schedules   ScheduleStore
	values      ValueStore
	publisher   Publisher
	metrics     Metrics
	now         func() time.Time
	keys        keyLocks

	dirtyMu sync.Mutex
	dirty   map[string]signal.Sample
}

// New creates an engine from deps.
func New(d Deps) *Engine {
	e := &Engine{
		store:       d.Store,
		coordinator: d.Coordinator,
		history:     d.History,
		machine:     d.Machine,
		cache:       d.Cache,
		schedules:   d.Schedules,
		values:      d.Values,
		publisher:   d.Publisher,
		metrics:     d.Metrics,
		now:         d.Now,
		dirty:       make(map[string]signal.Sample),
	}
	if e.machine == nil {
		e.machine = alertstate.NewMachine()
	}
	if e.cache == nil {
		e.cache = signal.NewLastValueCache()
	}
	if e.publisher == nil {
		e.publisher = NoOpPublisher{}
	}
	if e.metrics == nil {
		e.metrics = NoOpMetrics{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// SubmitSample evaluates one sample against every enabled rule on its metric
// and scope. Samples for the same (metric, scope) are evaluated one at a time.
func (e *Engine) SubmitSample(ctx context.Context, s signal.Sample) error {
	e.metrics.RecordReceived()
	if err := s.Check(); err != nil {
		e.metrics.RecordError()
		e.metrics.IncrementCustom("samples_malformed")
		return err
	}
	start := time.Now()
	if s.Timestamp.IsZero() {
		s.Timestamp = e.now().UTC()
	}

	unlock := e.keys.lock(s.Metric, s.Scope)
	defer unlock()

	prev := e.cache.Swap(s)
	e.markDirty(s)

	enabled := true
	matching, err := e.store.List(ctx, rules.Filter{Metric: s.Metric, Scope: s.Scope, Enabled: &enabled})
	if err != nil {
		e.metrics.RecordError()
		return fmt.Errorf("failed to list rules for %s: %w", s.Metric, err)
	}

	for _, rule := range matching {
		result := signal.Evaluate(rule, s, prev)
		tr := e.machine.Observe(alertstate.Observation{
			Rule:    rule,
			Scope:   s.Scope,
			Matched: result == signal.Triggered,
			Value:   s.Number(),
			Text:    s.Text,
			At:      s.Timestamp,
		})
		e.apply(ctx, rule, tr)
	}

	e.metrics.RecordProcessed(time.Since(start))
	e.metrics.SetActiveAlerts(e.machine.Len())
	return nil
}

// apply carries out the side effects of one transition.
func (e *Engine) apply(ctx context.Context, rule *rules.Rule, tr alertstate.Transition) {
	if tr.From == alertstate.StateNormal && tr.To == alertstate.StateTriggered {
		slog.Info("Alert triggered",
			"rule_id", rule.ID,
			"scope", tr.Event.Scope,
			"value", tr.Event.Reading(),
			"severity", tr.Event.Severity,
		)
		e.metrics.IncrementCustom("alerts_triggered")
		e.publish(ctx, events.TransitionTriggered, tr.Event, "")
	}
	if tr.Escalated {
		e.metrics.IncrementCustom("alerts_escalated")
	}
	if tr.NeedsDispatch {
		e.dispatch(ctx, tr.Event, rule)
	}
	if tr.Resolved() {
		e.resolved(ctx, tr.Event)
	}
}

func (e *Engine) dispatch(ctx context.Context, ev alertstate.Event, rule *rules.Rule) {
	out := e.coordinator.OnTrigger(ctx, ev, rule)
	switch out.Kind {
	case dispatch.OutcomeSuppressed:
		e.metrics.IncrementCustom("notifications_suppressed")
		if next, ok := schedule.NextWindowOpen(e.coordinator.Schedule(), e.now()); ok {
			slog.Debug("Alert held until notification window opens",
				"rule_id", ev.RuleID,
				"scope", ev.Scope,
				"next_window", next,
			)
		}
		return
	case dispatch.OutcomeClosed:
		return
	case dispatch.OutcomeGrouped:
		e.metrics.IncrementCustom("notifications_grouped")
	case dispatch.OutcomeDispatched:
		e.metrics.IncrementCustom("notifications_dispatched")
	}

	notified, ok := e.machine.MarkNotified(ev.RuleID, ev.Scope, e.now().UTC())
	if !ok {
		return
	}
	e.publish(ctx, events.TransitionNotified, notified, out.RecordID)
}

func (e *Engine) resolved(ctx context.Context, ev alertstate.Event) {
	slog.Info("Alert resolved", "rule_id", ev.RuleID, "scope", ev.Scope, "value", ev.Reading())
	e.metrics.IncrementCustom("alerts_resolved")

	rec := e.history.Append(history.Record{
		Kind:      history.KindResolved,
		RuleID:    ev.RuleID,
		RuleName:  ev.RuleName,
		Metric:    ev.Metric,
		Scope:     ev.Scope,
		Value:     ev.Value,
		Text:      ev.Text,
		Threshold: ev.Threshold,
		Unit:      ev.Unit,
		Severity:  ev.Severity,
		Timestamp: ev.UpdatedAt,
	})
	e.publish(ctx, events.TransitionResolved, ev, rec.ID)
}

func (e *Engine) publish(ctx context.Context, kind string, ev alertstate.Event, recordID string) {
	tr := events.NewAlertTransition(kind, ev, recordID, e.now())
	if err := e.publisher.PublishTransition(ctx, tr); err != nil {
		e.metrics.RecordError()
		slog.Error("Failed to publish alert transition",
			"kind", kind,
			"rule_id", ev.RuleID,
			"scope", ev.Scope,
			"error", err,
		)
		return
	}
	e.metrics.RecordPublished()
}

// Acknowledge marks the active event for (ruleID, scope) as seen by user.
// It returns alertstate.ErrNoActiveAlert when there is nothing to acknowledge.
func (e *Engine) Acknowledge(ctx context.Context, ruleID, scope, user string) (*alertstate.Event, error) {
	before, existed := e.machine.Get(ruleID, scope)
	ev, err := e.machine.Acknowledge(ruleID, scope, user, e.now().UTC())
	if err != nil {
		return nil, err
	}
	if existed && before.State == alertstate.StateAcknowledged {
		return &ev, nil
	}

	e.history.MarkAcknowledged(ruleID, scope, user)
	rec := e.history.Append(history.Record{
		Kind:           history.KindAcknowledged,
		RuleID:         ev.RuleID,
		RuleName:       ev.RuleName,
		Metric:         ev.Metric,
		Scope:          ev.Scope,
		Value:          ev.Value,
		Text:           ev.Text,
		Threshold:      ev.Threshold,
		Unit:           ev.Unit,
		Severity:       ev.Severity,
		Acknowledged:   true,
		AcknowledgedBy: user,
		Timestamp:      ev.UpdatedAt,
	})
	e.metrics.IncrementCustom("alerts_acknowledged")
	slog.Info("Alert acknowledged", "rule_id", ruleID, "scope", scope, "user_id", user)
	e.publish(ctx, events.TransitionAcknowledged, ev, rec.ID)
	return &ev, nil
}

// ListActiveAlerts returns the active events matching filter.
func (e *Engine) ListActiveAlerts(filter alertstate.Filter) []alertstate.Event {
	return e.machine.Active(filter)
}

// ListHistory returns dispatch records, newest first. limit <= 0 returns all.
func (e *Engine) ListHistory(filter history.Filter, limit int) []history.Record {
	return e.history.List(filter, limit)
}

// ClearHistory empties the history log and its durable store.
func (e *Engine) ClearHistory(ctx context.Context) error {
	return e.history.Clear(ctx)
}

// Schedule returns the notification schedule in effect.
func (e *Engine) Schedule() schedule.Schedule {
	return e.coordinator.Schedule()
}

// SetSchedule validates, persists and applies s.
func (e *Engine) SetSchedule(ctx context.Context, s schedule.Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if e.schedules != nil {
		if err := e.schedules.SaveSchedule(ctx, s); err != nil {
			return fmt.Errorf("failed to save schedule: %w", err)
		}
	}
	e.coordinator.SetSchedule(s)
	slog.Info("Notification schedule updated",
		"enabled", s.Enabled,
		"start", s.Start,
		"end", s.End,
		"timezone", s.Location,
		"quiet_mode", s.QuietMode,
		"group_interval", s.Grouping(),
	)
	return nil
}

// Tick offers every still-Triggered event and every unsent escalation to the
// dispatcher again. Events whose rule is gone or disabled are resolved instead.
func (e *Engine) Tick(ctx context.Context, at time.Time) {
	for _, ev := range e.machine.Pending() {
		rule, err := e.store.Get(ctx, ev.RuleID)
		if errors.Is(err, rules.ErrRuleNotFound) || (err == nil && !rule.Enabled) {
			e.retire(ctx, ev.RuleID, at)
			continue
		}
		if err != nil {
			slog.Error("Failed to load rule for pending alert", "rule_id", ev.RuleID, "error", err)
			continue
		}
		e.dispatch(ctx, ev, rule)
	}
	e.metrics.SetActiveAlerts(e.machine.Len())
}

// Run calls Tick every interval and flushes last values every FlushInterval
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	flush := time.NewTicker(FlushInterval)
	defer flush.Stop()

	slog.Info("Starting alert tick loop", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Alert tick loop stopped")
			return
		case <-ticker.C:
			e.Tick(ctx, e.now().UTC())
		case <-flush.C:
			if err := e.FlushValues(ctx); err != nil {
				slog.Warn("Failed to snapshot last values", "error", err)
			}
		}
	}
}

func (e *Engine) markDirty(s signal.Sample) {
	if e.values == nil {
		return
	}
	e.dirtyMu.Lock()
	e.dirty[s.Metric+"|"+s.Scope] = s
	e.dirtyMu.Unlock()
}

// FlushValues writes last values changed since the previous flush to the
// ValueStore in one batch. On failure the batch is kept for the next flush
// unless a newer sample for the same key has arrived.
func (e *Engine) FlushValues(ctx context.Context) error {
	if e.values == nil {
		return nil
	}
	e.dirtyMu.Lock()
	if len(e.dirty) == 0 {
		e.dirtyMu.Unlock()
		return nil
	}
	batch := e.dirty
	e.dirty = make(map[string]signal.Sample, len(batch))
	e.dirtyMu.Unlock()

	samples := make([]signal.Sample, 0, len(batch))
	for _, s := range batch {
		samples = append(samples, s)
	}
	if err := e.values.SaveSamples(ctx, samples); err != nil {
		e.dirtyMu.Lock()
		for key, s := range batch {
			if _, newer := e.dirty[key]; !newer {
				e.dirty[key] = s
			}
		}
		e.dirtyMu.Unlock()
		return fmt.Errorf("failed to save %d last values: %w", len(samples), err)
	}
	return nil
}

// Rebuild restores the saved schedule and the last-value cache.
func (e *Engine) Rebuild(ctx context.Context) error {
	if e.schedules != nil {
		s, err := e.schedules.LoadSchedule(ctx)
		if err != nil {
			return fmt.Errorf("failed to load schedule: %w", err)
		}
		if s != nil {
			e.coordinator.SetSchedule(*s)
			slog.Info("Restored notification schedule", "enabled", s.Enabled)
		}
	}
	if e.values != nil {
		samples, err := e.values.LoadSamples(ctx)
		if err != nil {
			return fmt.Errorf("failed to load last values: %w", err)
		}
		e.cache.Restore(samples)
		slog.Info("Restored last values", "count", len(samples))
	}
	return nil
}

// ActiveCount returns the size of the active set.
func (e *Engine) ActiveCount() int {
	return e.machine.Len()
}

// Close stops in-flight deliveries and flushes pending last values.
func (e *Engine) Close() {
	e.coordinator.Close()
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := e.FlushValues(ctx); err != nil {
		slog.Warn("Failed to snapshot last values on close", "error", err)
	}
}
