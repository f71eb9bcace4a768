// Package history keeps a bounded log of dispatch records for operator review.
package history

import (
	"maps"
	"slices"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// DefaultCapacity is the number of records retained when no cap is configured.
const DefaultCapacity = 500

// Kind says why a record was written.
type Kind string

const (
	KindNotified     Kind = "notified"
	KindAcknowledged Kind = "acknowledged"
	KindResolved     Kind = "resolved"
)

// DeliveryStatus is the state of one channel call.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery is the outcome of dispatching a record through one channel.
type Delivery struct {
	Status    DeliveryStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Attempts  int            `json:"attempts,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Record is a snapshot of an alert event at the moment it was notified,
// acknowledged or resolved.
type Record struct {
	ID             string                     `json:"id"`
	Kind           Kind                       `json:"kind"`
	RuleID         string                     `json:"rule_id"`
	RuleName       string                     `json:"rule_name"`
	Metric         string                     `json:"metric"`
	Scope          string                     `json:"scope"`
	Value          *float64                   `json:"value,omitempty"`
	Text           string                     `json:"text,omitempty"`
	Threshold      *float64                   `json:"threshold,omitempty"`
	Unit           string                     `json:"unit,omitempty"`
	Severity       rules.Severity             `json:"severity"`
	Channels       []rules.Channel            `json:"channels,omitempty"`
	Delivery       map[rules.Channel]Delivery `json:"delivery,omitempty"`
	Occurrences    int                        `json:"occurrences"`
	Acknowledged   bool                       `json:"acknowledged"`
	AcknowledgedBy string                     `json:"acknowledged_by,omitempty"`
	Timestamp      time.Time                  `json:"timestamp"`
	LastOccurredAt time.Time                  `json:"last_occurred_at"`
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	c.Channels = slices.Clone(r.Channels)
	if r.Delivery != nil {
		c.Delivery = maps.Clone(r.Delivery)
	}
	if r.Threshold != nil {
		v := *r.Threshold
		c.Threshold = &v
	}
	if r.Value != nil {
		v := *r.Value
		c.Value = &v
	}
	return c
}

// Filter narrows a history listing. Zero values match everything.
type Filter struct {
	RuleID       string
	Metric       string
	Scope        string
	Severity     rules.Severity
	Kind         Kind
	Acknowledged *bool
	Since        time.Time
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *Record) bool {
	switch {
	case f.RuleID != "" && r.RuleID != f.RuleID:
		return false
	case f.Metric != "" && r.Metric != f.Metric:
		return false
	case f.Scope != "" && r.Scope != f.Scope:
		return false
	case f.Severity != "" && r.Severity != f.Severity:
		return false
	case f.Kind != "" && r.Kind != f.Kind:
		return false
	case f.Acknowledged != nil && r.Acknowledged != *f.Acknowledged:
		return false
	case !f.Since.IsZero() && r.Timestamp.Before(f.Since):
		return false
	}
	return true
}
