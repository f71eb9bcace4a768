// Package rules defines alert rules, their validation, and the rule store contract.
package rules

import (
	"slices"
	"time"
)

// WildcardScope matches every scope id.
const WildcardScope = "*"

// Condition is the comparator a rule applies to a metric sample.
type Condition string

const (
	ConditionGreaterThan     Condition = "greater_than"
	ConditionLessThan        Condition = "less_than"
	ConditionEquals          Condition = "equals"
	ConditionPercentIncrease Condition = "percent_increase"
	ConditionPercentDecrease Condition = "percent_decrease"
)

// IsValid reports whether c is a recognized condition.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals,
		ConditionPercentIncrease, ConditionPercentDecrease:
		return true
	default:
		return false
	}
}

// IsTrend reports whether the condition needs the previous sample.
func (c Condition) IsTrend() bool {
	return c == ConditionPercentIncrease || c == ConditionPercentDecrease
}

// Severity is the ordinal urgency of a rule: info < warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal of the severity, or -1 if unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return -1
	}
}

// IsValid reports whether s is an allowed severity.
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Channel names a notification channel.
type Channel string

const (
	ChannelApp   Channel = "app"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelSound Channel = "sound"
	ChannelSlack Channel = "slack"
)

// KnownChannels lists every channel a rule may select.
var KnownChannels = []Channel{ChannelApp, ChannelSMS, ChannelEmail, ChannelSound, ChannelSlack}

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	return slices.Contains(KnownChannels, c)
}

// Rule is a user-defined condition over a metric that decides when to alert.
type Rule struct {
	ID            string             `json:"rule_id" yaml:"id"`
	Name          string             `json:"name" yaml:"name"`
	Metric        string             `json:"metric" yaml:"metric"`
	Scope         []string           `json:"scope" yaml:"scope"`
	Condition     Condition          `json:"condition" yaml:"condition"`
	Threshold     *float64           `json:"threshold,omitempty" yaml:"threshold"`
	ThresholdText string             `json:"threshold_text,omitempty" yaml:"threshold_text"`
	Unit          string             `json:"unit,omitempty" yaml:"unit"`
	Severity      Severity           `json:"severity" yaml:"severity"`
	Channels      []Channel          `json:"channels" yaml:"channels"`
	Recipients    map[Channel]string `json:"recipients,omitempty" yaml:"recipients"`
	Enabled       bool               `json:"enabled" yaml:"enabled"`
	Version       int                `json:"version" yaml:"-"`
	CreatedAt     time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time          `json:"updated_at" yaml:"-"`
}

// AppliesTo reports whether the rule watches the given scope id.
func (r *Rule) AppliesTo(scope string) bool {
	for _, s := range r.Scope {
		if s == WildcardScope || s == scope {
			return true
		}
	}
	return false
}

// ThresholdValue returns the numeric threshold, or 0 when unset.
func (r *Rule) ThresholdValue() float64 {
	if r.Threshold == nil {
		return 0
	}
	return *r.Threshold
}

// Recipient returns the endpoint configured for a channel.
func (r *Rule) Recipient(c Channel) string {
	if r.Recipients == nil {
		return ""
	}
	return r.Recipients[c]
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Scope = slices.Clone(r.Scope)
	c.Channels = slices.Clone(r.Channels)
	if r.Threshold != nil {
		t := *r.Threshold
		c.Threshold = &t
	}
	if r.Recipients != nil {
		c.Recipients = make(map[Channel]string, len(r.Recipients))
		for k, v := range r.Recipients {
			c.Recipients[k] = v
		}
	}
	return &c
}

// Patch holds optional field updates. Nil fields are left unchanged.
type Patch struct {
	Name          *string            `json:"name,omitempty"`
	Metric        *string            `json:"metric,omitempty"`
	Scope         []string           `json:"scope,omitempty"`
	Condition     *Condition         `json:"condition,omitempty"`
	Threshold     *float64           `json:"threshold,omitempty"`
	ThresholdText *string            `json:"threshold_text,omitempty"`
	Unit          *string            `json:"unit,omitempty"`
	Severity      *Severity          `json:"severity,omitempty"`
	Channels      []Channel          `json:"channels,omitempty"`
	Recipients    map[Channel]string `json:"recipients,omitempty"`
	Enabled       *bool              `json:"enabled,omitempty"`
	Version       *int               `json:"version,omitempty"` // expected version for optimistic locking
}

// Apply returns a copy of r with the patch applied.
func (p Patch) Apply(r *Rule) *Rule {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Metric != nil {
		out.Metric = *p.Metric
	}
	if p.Scope != nil {
		out.Scope = slices.Clone(p.Scope)
	}
	if p.Condition != nil {
		out.Condition = *p.Condition
	}
	if p.Threshold != nil {
		t := *p.Threshold
		out.Threshold = &t
	}
	if p.ThresholdText != nil {
		out.ThresholdText = *p.ThresholdText
	}
	if p.Unit != nil {
		out.Unit = *p.Unit
	}
	if p.Severity != nil {
		out.Severity = *p.Severity
	}
	if p.Channels != nil {
		out.Channels = slices.Clone(p.Channels)
	}
	if p.Recipients != nil {
		out.Recipients = make(map[Channel]string, len(p.Recipients))
		for k, v := range p.Recipients {
			out.Recipients[k] = v
		}
	}
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	return out
}

// Filter narrows a rule listing. Zero values match everything.
type Filter struct {
	Metric   string
	Scope    string
	Severity Severity
	Enabled  *bool
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r *Rule) bool {
	if f.Metric != "" && r.Metric != f.Metric {
		return false
	}
	if f.Scope != "" && !r.AppliesTo(f.Scope) {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.Enabled != nil && r.Enabled != *f.Enabled {
		return false
	}
	return true
}
