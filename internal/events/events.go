// Package events defines the messages exchanged on the metric.samples,
// rule.changed and alert.lifecycle topics. Kafka carries them as protobuf
// (events.proto); the HTTP API uses the JSON form.
package events

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/alertstate"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/signal"
)

// SchemaVersion is stamped on every produced message.
const SchemaVersion = 1

// SampleReceived is a metric sample from the metric.samples topic.
type SampleReceived struct {
	Metric        string   `json:"metric"`
	Scope         string   `json:"scope"`
	Value         *float64 `json:"value,omitempty"`
	Text          string   `json:"text,omitempty"`
	EventTS       int64    `json:"event_ts,omitempty"` // Unix millis
	SchemaVersion int      `json:"schema_version"`
}

// ToSample converts the message into a sample. A missing value becomes NaN,
// which the engine rejects unless the sample carries text.
func (s *SampleReceived) ToSample() signal.Sample {
	out := signal.Sample{
		Metric: strings.TrimSpace(s.Metric),
		Scope:  strings.TrimSpace(s.Scope),
		Text:   s.Text,
		Value:  math.NaN(),
	}
	if s.Value != nil {
		out.Value = *s.Value
	}
	if s.EventTS > 0 {
		out.Timestamp = time.UnixMilli(s.EventTS).UTC()
	}
	return out
}

// Validate checks the fields required to route the sample.
func (s *SampleReceived) Validate() error {
	if strings.TrimSpace(s.Metric) == "" {
		return fmt.Errorf("metric cannot be empty")
	}
	if strings.TrimSpace(s.Scope) == "" {
		return fmt.Errorf("scope cannot be empty")
	}
	if s.Value == nil && s.Text == "" {
		return fmt.Errorf("value or text is required")
	}
	return nil
}

// RuleChanged is published to rule.changed on every rule mutation.
type RuleChanged struct {
	RuleID        string `json:"rule_id"`
	Action        string `json:"action"` // CREATED, UPDATED, DELETED, DISABLED
	Version       int    `json:"version"`
	UpdatedAt     int64  `json:"updated_at"` // Unix timestamp
	SchemaVersion int    `json:"schema_version"`
}

// Rule change actions.
const (
	ActionCreated  = "CREATED"
	ActionUpdated  = "UPDATED"
	ActionDeleted  = "DELETED"
	ActionDisabled = "DISABLED"
)

// NewRuleChanged builds a RuleChanged event for rule.
func NewRuleChanged(rule *rules.Rule, action string, at time.Time) *RuleChanged {
	return &RuleChanged{
		RuleID:        rule.ID,
		Action:        action,
		Version:       rule.Version,
		UpdatedAt:     at.Unix(),
		SchemaVersion: SchemaVersion,
	}
}

// Transition kinds published to alert.lifecycle.
const (
	TransitionTriggered    = "TRIGGERED"
	TransitionNotified     = "NOTIFIED"
	TransitionAcknowledged = "ACKNOWLEDGED"
	TransitionResolved     = "RESOLVED"
)

// AlertTransition is published to alert.lifecycle when an event changes state.
type AlertTransition struct {
	Kind          string         `json:"kind"`
	RuleID        string         `json:"rule_id"`
	RuleName      string         `json:"rule_name"`
	Metric        string         `json:"metric"`
	Scope         string         `json:"scope"`
	State         string         `json:"state"`
	Severity      rules.Severity `json:"severity"`
	Value         *float64       `json:"value,omitempty"`
	Text          string         `json:"text,omitempty"`
	RecordID      string         `json:"record_id,omitempty"`
	User          string         `json:"user_id,omitempty"`
	EventTS       int64          `json:"event_ts"` // Unix millis
	SchemaVersion int            `json:"schema_version"`
}

// NewAlertTransition builds a lifecycle message from an alert event.
func NewAlertTransition(kind string, ev alertstate.Event, recordID string, at time.Time) *AlertTransition {
	return &AlertTransition{
		Kind:          kind,
		RuleID:        ev.RuleID,
		RuleName:      ev.RuleName,
		Metric:        ev.Metric,
		Scope:         ev.Scope,
		State:         string(ev.State),
		Severity:      ev.Severity,
		Value:         ev.Value,
		Text:          ev.Text,
		RecordID:      recordID,
		User:          ev.AcknowledgedBy,
		EventTS:       at.UnixMilli(),
		SchemaVersion: SchemaVersion,
	}
}
