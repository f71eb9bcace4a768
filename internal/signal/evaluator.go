// Package signal evaluates metric samples against rule conditions.
package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// ErrMalformedSample is returned for samples that carry no usable value.
var ErrMalformedSample = errors.New("malformed sample")

// Sample is one observation of a metric for a scope id.
type Sample struct {
	Metric    string    `json:"metric"`
	Scope     string    `json:"scope"`
	Value     float64   `json:"value"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Check reports why a sample cannot be evaluated, or nil.
func (s Sample) Check() error {
	if strings.TrimSpace(s.Metric) == "" {
		return fmt.Errorf("%w: metric is required", ErrMalformedSample)
	}
	if strings.TrimSpace(s.Scope) == "" {
		return fmt.Errorf("%w: scope is required", ErrMalformedSample)
	}
	if s.Text == "" && (math.IsNaN(s.Value) || math.IsInf(s.Value, 0)) {
		return fmt.Errorf("%w: value for %s/%s is not a number", ErrMalformedSample, s.Metric, s.Scope)
	}
	return nil
}

// Number returns the numeric value, or nil for a text-only sample.
func (s Sample) Number() *float64 {
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return nil
	}
	v := s.Value
	return &v
}

// Result is the outcome of evaluating one rule against one sample.
type Result int

const (
	NotTriggered Result = iota
	Triggered
)

func (r Result) String() string {
	if r == Triggered {
		return "triggered"
	}
	return "not_triggered"
}

// Evaluate compares sample to the rule's condition. prev is the previous sample
// for the same (metric, scope) and is only consulted by percent conditions.
// A sample without a usable value never triggers.
func Evaluate(rule *rules.Rule, sample Sample, prev *Sample) Result {
	if rule == nil {
		return NotTriggered
	}
	if rule.Condition == rules.ConditionEquals && rule.ThresholdText != "" {
		if sample.Text != "" && strings.EqualFold(sample.Text, rule.ThresholdText) {
			return Triggered
		}
		return NotTriggered
	}
	if math.IsNaN(sample.Value) || rule.Threshold == nil {
		return NotTriggered
	}

	threshold := *rule.Threshold
	var hit bool
	switch rule.Condition {
	case rules.ConditionGreaterThan:
		hit = sample.Value > threshold
	case rules.ConditionLessThan:
		hit = sample.Value < threshold
	case rules.ConditionEquals:
		hit = sample.Value == threshold
	case rules.ConditionPercentIncrease:
		delta, ok := percentChange(prev, sample.Value)
		hit = ok && delta > threshold
	case rules.ConditionPercentDecrease:
		delta, ok := percentChange(prev, sample.Value)
		hit = ok && -delta > threshold
	}
	if hit {
		return Triggered
	}
	return NotTriggered
}

// percentChange returns (cur - prev) / |prev| * 100. ok is false when there is
// no usable previous value.
func percentChange(prev *Sample, cur float64) (float64, bool) {
	if prev == nil || math.IsNaN(prev.Value) || prev.Value == 0 {
		return 0, false
	}
	return (cur - prev.Value) / math.Abs(prev.Value) * 100, true
}
