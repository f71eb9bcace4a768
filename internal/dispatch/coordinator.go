// Package dispatch decides whether a triggered alert is notified now, merged
// into a recent notification, or held back by the schedule, and fans
// notifications out to channels without blocking the caller.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/channel"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/history"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/schedule"
)

// OutcomeKind is what OnTrigger did with a trigger.
type OutcomeKind string

const (
	OutcomeDispatched OutcomeKind = "dispatched"
	OutcomeGrouped    OutcomeKind = "grouped"
	OutcomeSuppressed OutcomeKind = "suppressed"
	OutcomeClosed     OutcomeKind = "closed"
)

// Outcome is the result of OnTrigger.
type Outcome struct {
	Kind        OutcomeKind
	RecordID    string
	Occurrences int
}

// Notified reports whether the trigger is covered by a notification.
func (o Outcome) Notified() bool {
	return o.Kind == OutcomeDispatched || o.Kind == OutcomeGrouped
}

// Deliverer sends one payload through one channel. *channel.Dispatcher implements it.
type Deliverer interface {
	Deliver(ctx context.Context, c rules.Channel, endpoint string, p *channel.Payload) channel.Result
}

// HistoryLog is the part of *history.Log the coordinator writes to.
type HistoryLog interface {
	Append(rec history.Record) history.Record
	IncrementOccurrences(id string, value *float64, text string, at time.Time) (history.Record, error)
	SetDelivery(id string, ch rules.Channel, d history.Delivery) (history.Record, error)
}

// group is the last notification emitted for a rule.
type group struct {
	recordID string
	at       time.Time
	severity rules.Severity
}

// ruleScope carries the cancellation for one rule's in-flight deliveries.
type ruleScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Coordinator applies the schedule gate and grouping, then fans out.
type Coordinator struct {
	deliverer Deliverer
	log       HistoryLog
	recorder  Recorder
	now       func() time.Time

	mu       sync.Mutex
	schedule schedule.Schedule
	groups   map[string]group
	scopes   map[string]*ruleScope
	closed   bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator. The schedule starts as schedule.Default().
func NewCoordinator(deliverer Deliverer, log HistoryLog, recorder Recorder) *Coordinator {
	if recorder == nil {
		recorder = NoOpRecorder{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		deliverer: deliverer,
		log:       log,
		recorder:  recorder,
		now:       time.Now,
		schedule:  schedule.Default(),
		groups:    make(map[string]group),
		scopes:    make(map[string]*ruleScope),
		base:      base,
		cancel:    cancel,
	}
}

// WithClock overrides the time source.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// SetSchedule replaces the notification schedule.
func (c *Coordinator) SetSchedule(s schedule.Schedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = s
}

// Schedule returns the current notification schedule.
func (c *Coordinator) Schedule() schedule.Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule
}

// OnTrigger handles a freshly triggered or escalated event. It never waits for
// channel delivery; history writes are queued for the store.
func (c *Coordinator) OnTrigger(ctx context.Context, ev alertstate.Event, rule *rules.Rule) Outcome {
	at := c.now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.finish(Outcome{Kind: OutcomeClosed})
	}
	sched := c.schedule

	if !schedule.IsNotificationAllowed(sched, ev.Severity, at) {
		c.mu.Unlock()
		slog.Debug("Notification suppressed by schedule",
			"rule_id", rule.ID,
			"scope", ev.Scope,
			"severity", ev.Severity,
		)
		return c.finish(Outcome{Kind: OutcomeSuppressed})
	}

	if g, ok := c.groups[rule.ID]; ok && at.Sub(g.at) < sched.Grouping() && ev.Severity.Rank() <= g.severity.Rank() {
		rec, err := c.log.IncrementOccurrences(g.recordID, ev.Value, ev.Text, at)
		if err == nil {
			c.mu.Unlock()
			return c.finish(Outcome{Kind: OutcomeGrouped, RecordID: rec.ID, Occurrences: rec.Occurrences})
		}
		// the grouped record was evicted from history; start a new one
		delete(c.groups, rule.ID)
	}

	rec := c.log.Append(newRecord(ev, rule, at))
	c.groups[rule.ID] = group{recordID: rec.ID, at: at, severity: ev.Severity}
	scope := c.scopeFor(rule.ID)
	c.wg.Add(len(rule.Channels))
	c.mu.Unlock()

	payload := newPayload(rec, rule)
	for _, ch := range rule.Channels {
		go c.deliver(scope, ch, rule.Recipient(ch), payload, rule.ID)
	}

	return c.finish(Outcome{Kind: OutcomeDispatched, RecordID: rec.ID, Occurrences: rec.Occurrences})
}

func (c *Coordinator) finish(o Outcome) Outcome {
	c.recorder.RecordOutcome(o.Kind)
	return o
}

// scopeFor must be called with mu held.
func (c *Coordinator) scopeFor(ruleID string) *ruleScope {
	if s, ok := c.scopes[ruleID]; ok {
		return s
	}
	ctx, cancel := context.WithCancel(c.base)
	s := &ruleScope{ctx: ctx, cancel: cancel}
	c.scopes[ruleID] = s
	return s
}

func (c *Coordinator) deliver(scope *ruleScope, ch rules.Channel, endpoint string, p *channel.Payload, ruleID string) {
	defer c.wg.Done()

	res := c.deliverer.Deliver(scope.ctx, ch, endpoint, p)
	c.recorder.RecordDelivery(ch, res.OK(), res.Duration)

	if scope.ctx.Err() != nil {
		slog.Debug("Discarding delivery result for cancelled rule",
			"rule_id", ruleID,
			"channel", ch,
			"record_id", p.RecordID,
		)
		return
	}

	d := history.Delivery{Status: history.DeliverySent, Attempts: res.Attempts}
	if !res.OK() {
		d.Status = history.DeliveryFailed
		d.Error = res.Err.Error()
	}
	if _, err := c.log.SetDelivery(p.RecordID, ch, d); err != nil {
		slog.Debug("Delivery status not recorded", "record_id", p.RecordID, "error", err)
	}
}

// CancelRule stops pending retries for a rule and forgets its grouping state.
// Results of deliveries still in flight are discarded.
func (c *Coordinator) CancelRule(ruleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.scopes[ruleID]; ok {
		s.cancel()
		delete(c.scopes, ruleID)
	}
	delete(c.groups, ruleID)
}

// Wait blocks until every started delivery has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels all pending deliveries and waits for their goroutines.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func newRecord(ev alertstate.Event, rule *rules.Rule, at time.Time) history.Record {
	delivery := make(map[rules.Channel]history.Delivery, len(rule.Channels))
	for _, ch := range rule.Channels {
		delivery[ch] = history.Delivery{Status: history.DeliveryPending, UpdatedAt: at}
	}
	return history.Record{
		Kind:      history.KindNotified,
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Metric:    rule.Metric,
		Scope:     ev.Scope,
		Value:     ev.Value,
		Text:      ev.Text,
		Threshold: rule.Threshold,
		Unit:      rule.Unit,
		Severity:  ev.Severity,
		Channels:  rule.Channels,
		Delivery:  delivery,
		Timestamp: at,
	}
}

func newPayload(rec history.Record, rule *rules.Rule) *channel.Payload {
	return &channel.Payload{
		RecordID:    rec.ID,
		RuleID:      rec.RuleID,
		RuleName:    rec.RuleName,
		Metric:      rec.Metric,
		Scope:       rec.Scope,
		Value:       rec.Value,
		Text:        rec.Text,
		Threshold:   rec.Threshold,
		Condition:   string(rule.Condition),
		Unit:        rec.Unit,
		Severity:    rec.Severity,
		Occurrences: rec.Occurrences,
		Timestamp:   rec.Timestamp,
	}
}
