// Package alertstate owns the lifecycle of active alert events, one per (rule, scope).
package alertstate

import (
	"errors"
	"strconv"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// ErrNoActiveAlert is returned when acknowledging an event that is missing or resolved.
var ErrNoActiveAlert = errors.New("no active alert")

// State is the lifecycle position of an alert event.
type State string

const (
	StateNormal       State = "normal"
	StateTriggered    State = "triggered"
	StateNotified     State = "notified"
	StateAcknowledged State = "acknowledged"
	StateResolved     State = "resolved"
)

// IsActive reports whether an event in this state belongs to the active set.
func (s State) IsActive() bool {
	return s == StateTriggered || s == StateNotified || s == StateAcknowledged
}

// Key identifies an event.
type Key struct {
	RuleID string
	Scope  string
}

// Event is the current alert for one rule on one scope id.
type Event struct {
	RuleID           string         `json:"rule_id"`
	RuleName         string         `json:"rule_name"`
	Metric           string         `json:"metric"`
	Scope            string         `json:"scope"`
	State            State          `json:"state"`
	Value            *float64       `json:"value,omitempty"`
	Text             string         `json:"text,omitempty"`
	Threshold        *float64       `json:"threshold,omitempty"`
	Unit             string         `json:"unit,omitempty"`
	Severity         rules.Severity `json:"severity"`
	FirstTriggeredAt time.Time      `json:"first_triggered_at"`
	LastNotifiedAt   *time.Time     `json:"last_notified_at,omitempty"`
	AcknowledgedBy   string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time     `json:"acknowledged_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
	// EscalationPending is set when severity rose and no notification has
	// gone out since.
	EscalationPending bool `json:"escalation_pending,omitempty"`
}

// Key returns the (rule, scope) key of the event.
func (e *Event) Key() Key {
	return Key{RuleID: e.RuleID, Scope: e.Scope}
}

// Reading renders the observed value for logs: the text, the number or "-".
func (e *Event) Reading() string {
	switch {
	case e.Text != "":
		return e.Text
	case e.Value != nil:
		return strconv.FormatFloat(*e.Value, 'f', -1, 64)
	}
	return "-"
}

func (e *Event) clone() Event {
	c := *e
	if e.Value != nil {
		v := *e.Value
		c.Value = &v
	}
	if e.Threshold != nil {
		v := *e.Threshold
		c.Threshold = &v
	}
	if e.LastNotifiedAt != nil {
		v := *e.LastNotifiedAt
		c.LastNotifiedAt = &v
	}
	if e.AcknowledgedAt != nil {
		v := *e.AcknowledgedAt
		c.AcknowledgedAt = &v
	}
	return c
}

// Observation is one evaluated sample for a rule and scope.
type Observation struct {
	Rule    *rules.Rule
	Scope   string
	Matched bool
	Value   *float64 // nil for text-only samples
	Text    string
	At      time.Time
}

// Transition reports what Observe did.
type Transition struct {
	From          State
	To            State
	Event         Event
	NeedsDispatch bool
	Escalated     bool
}

// Resolved reports whether the observation closed an active event.
func (t Transition) Resolved() bool {
	return t.To == StateResolved
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Filter narrows the active set. Zero values match everything.
type Filter struct {
	RuleID   string
	Metric   string
	Scope    string
	Severity rules.Severity
	State    State
}

func (f Filter) matches(e *Event) bool {
	if f.RuleID != "" && e.RuleID != f.RuleID {
		return false
	}
	if f.Metric != "" && e.Metric != f.Metric {
		return false
	}
	if f.Scope != "" && e.Scope != f.Scope {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.State != "" && e.State != f.State {
		return false
	}
	return true
}
