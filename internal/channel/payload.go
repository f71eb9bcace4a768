package channel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// Payload is what every channel receives for one notification.
type Payload struct {
	RecordID    string         `json:"record_id"`
	RuleID      string         `json:"rule_id"`
	RuleName    string         `json:"rule_name"`
	Metric      string         `json:"metric"`
	Scope       string         `json:"scope"`
	Value       *float64       `json:"value,omitempty"`
	Text        string         `json:"text,omitempty"`
	Threshold   *float64       `json:"threshold,omitempty"`
	Condition   string         `json:"condition"`
	Unit        string         `json:"unit,omitempty"`
	Severity    rules.Severity `json:"severity"`
	Occurrences int            `json:"occurrences"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Subject returns a one-line summary used as email subject and push title.
func (p *Payload) Subject() string {
	return fmt.Sprintf("Alert: %s - %s", strings.ToUpper(string(p.Severity)), p.RuleName)
}

// ValueString formats the observed value with its unit.
func (p *Payload) ValueString() string {
	if p.Text != "" {
		return p.Text
	}
	if p.Value == nil {
		return "-"
	}
	return formatNumber(*p.Value, p.Unit)
}

// ThresholdString formats the threshold with its unit, or "-" when unset.
func (p *Payload) ThresholdString() string {
	if p.Threshold == nil {
		return "-"
	}
	return formatNumber(*p.Threshold, p.Unit)
}

// Summary is a short sentence suitable for SMS and push bodies.
func (p *Payload) Summary() string {
	return fmt.Sprintf("[%s] %s: %s on %s is %s (%s %s)",
		strings.ToUpper(string(p.Severity)), p.RuleName, p.Metric, p.Scope,
		p.ValueString(), strings.ReplaceAll(p.Condition, "_", " "), p.ThresholdString())
}

// Body renders the plain-text body used by email.
func (p *Payload) Body() string {
	var sb strings.Builder
	sb.WriteString("Alert Notification\n")
	sb.WriteString("==================\n\n")
	fmt.Fprintf(&sb, "Rule: %s\n", p.RuleName)
	fmt.Fprintf(&sb, "Severity: %s\n", p.Severity)
	fmt.Fprintf(&sb, "Metric: %s\n", p.Metric)
	fmt.Fprintf(&sb, "Scope: %s\n", p.Scope)
	fmt.Fprintf(&sb, "Value: %s\n", p.ValueString())
	fmt.Fprintf(&sb, "Condition: %s %s\n", p.Condition, p.ThresholdString())
	if p.Occurrences > 1 {
		fmt.Fprintf(&sb, "Occurrences: %d\n", p.Occurrences)
	}
	fmt.Fprintf(&sb, "Time: %s\n", p.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Rule ID: %s\n", p.RuleID)
	fmt.Fprintf(&sb, "Record ID: %s\n", p.RecordID)
	return sb.String()
}

func formatNumber(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}
