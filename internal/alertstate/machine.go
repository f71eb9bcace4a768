package alertstate

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Machine holds the active alert events. Updates for the same (rule, scope) are
// serialized with a per-key lock; different keys proceed in parallel.
type Machine struct {
	mu     sync.RWMutex
	events map[Key]*Event

	locksMu sync.Mutex
	locks   map[Key]*sync.Mutex
}

// NewMachine creates a machine with an empty active set.
func NewMachine() *Machine {
	return &Machine{
		events: make(map[Key]*Event),
		locks:  make(map[Key]*sync.Mutex),
	}
}

func (m *Machine) lock(k Key) func() {
	m.locksMu.Lock()
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *Machine) load(k Key) (*Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[k]
	return e, ok
}

func (m *Machine) store(e *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.Key()] = e
}

func (m *Machine) remove(k Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, k)
}

// Observe applies one evaluation result to the (rule, scope) event.
func (m *Machine) Observe(o Observation) Transition {
	k := Key{RuleID: o.Rule.ID, Scope: o.Scope}
	unlock := m.lock(k)
	defer unlock()

	e, exists := m.load(k)
	if !exists {
		if !o.Matched {
			return Transition{From: StateNormal, To: StateNormal}
		}
		e = &Event{
			RuleID:           o.Rule.ID,
			RuleName:         o.Rule.Name,
			Metric:           o.Rule.Metric,
			Scope:            o.Scope,
			State:            StateTriggered,
			Value:            o.Value,
			Text:             o.Text,
			Threshold:        o.Rule.Threshold,
			Unit:             o.Rule.Unit,
			Severity:         o.Rule.Severity,
			FirstTriggeredAt: o.At,
			UpdatedAt:        o.At,
		}
		m.store(e)
		return Transition{From: StateNormal, To: StateTriggered, Event: e.clone(), NeedsDispatch: true}
	}

	from := e.State
	if !o.Matched {
		m.remove(k)
		e.State = StateResolved
		e.Value = o.Value
		e.Text = o.Text
		e.UpdatedAt = o.At
		return Transition{From: from, To: StateResolved, Event: e.clone()}
	}

	m.mu.Lock()
	e.Value = o.Value
	e.Text = o.Text
	e.RuleName = o.Rule.Name
	e.Threshold = o.Rule.Threshold
	e.UpdatedAt = o.At
	escalated := o.Rule.Severity.Rank() > e.Severity.Rank()
	if escalated {
		e.Severity = o.Rule.Severity
		e.EscalationPending = true
	}
	snapshot := e.clone()
	m.mu.Unlock()

	// a still-Triggered event or an unsent escalation was suppressed or failed
	// to dispatch; offer it again
	needs := from == StateTriggered || snapshot.EscalationPending
	return Transition{From: from, To: from, Event: snapshot, NeedsDispatch: needs, Escalated: escalated}
}

// MarkNotified moves a Triggered event to Notified. Events already past
// Triggered only get their notification time refreshed.
func (m *Machine) MarkNotified(ruleID, scope string, at time.Time) (Event, bool) {
	k := Key{RuleID: ruleID, Scope: scope}
	unlock := m.lock(k)
	defer unlock()

	e, ok := m.load(k)
	if !ok {
		return Event{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.State == StateTriggered {
		e.State = StateNotified
	}
	e.EscalationPending = false
	t := at
	e.LastNotifiedAt = &t
	e.UpdatedAt = at
	return e.clone(), true
}

// Acknowledge records that user has seen the alert. Acknowledging an event
// that is already Acknowledged returns it unchanged.
func (m *Machine) Acknowledge(ruleID, scope, user string, at time.Time) (Event, error) {
	k := Key{RuleID: ruleID, Scope: scope}
	unlock := m.lock(k)
	defer unlock()

	e, ok := m.load(k)
	if !ok || !e.State.IsActive() {
		return Event{}, fmt.Errorf("%w: rule %s scope %s", ErrNoActiveAlert, ruleID, scope)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e.State != StateAcknowledged {
		e.State = StateAcknowledged
		e.AcknowledgedBy = user
		t := at
		e.AcknowledgedAt = &t
		e.UpdatedAt = at
	}
	return e.clone(), nil
}

// ResolveRule resolves every active event of a rule and returns them.
func (m *Machine) ResolveRule(ruleID string, at time.Time) []Event {
	return m.resolveWhere(at, func(e *Event) bool { return e.RuleID == ruleID })
}

// ResolveScopes resolves the events of a rule whose scope no longer applies.
func (m *Machine) ResolveScopes(ruleID string, at time.Time, keep func(scope string) bool) []Event {
	return m.resolveWhere(at, func(e *Event) bool {
		return e.RuleID == ruleID && !keep(e.Scope)
	})
}

func (m *Machine) resolveWhere(at time.Time, match func(*Event) bool) []Event {
	m.mu.RLock()
	var keys []Key
	for k, e := range m.events {
		if match(e) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	var out []Event
	for _, k := range keys {
		unlock := m.lock(k)
		if e, ok := m.load(k); ok {
			m.remove(k)
			e.State = StateResolved
			e.UpdatedAt = at
			out = append(out, e.clone())
		}
		unlock()
	}
	sortEvents(out)
	return out
}

// Get returns a copy of the active event for (rule, scope).
func (m *Machine) Get(ruleID, scope string) (Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[Key{RuleID: ruleID, Scope: scope}]
	if !ok {
		return Event{}, false
	}
	return e.clone(), true
}

// Active returns copies of the active events matching filter, oldest trigger first.
func (m *Machine) Active(filter Filter) []Event {
	m.mu.RLock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if filter.matches(e) {
			out = append(out, e.clone())
		}
	}
	m.mu.RUnlock()
	sortEvents(out)
	return out
}

// Pending returns the events still waiting for a notification: Triggered
// events and escalations not yet sent.
func (m *Machine) Pending() []Event {
	m.mu.RLock()
	var out []Event
	for _, e := range m.events {
		if e.State == StateTriggered || e.EscalationPending {
			out = append(out, e.clone())
		}
	}
	m.mu.RUnlock()
	sortEvents(out)
	return out
}

// Len returns the size of the active set.
func (m *Machine) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func sortEvents(events []Event) {
	slices.SortFunc(events, func(a, b Event) int {
		if c := a.FirstTriggeredAt.Compare(b.FirstTriggeredAt); c != 0 {
			return c
		}
		if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
			return c
		}
		return strings.Compare(a.Scope, b.Scope)
	})
}
