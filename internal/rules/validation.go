package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidRule is wrapped by every rule validation failure.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrRuleNotFound is returned when a rule id does not exist.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrVersionMismatch is returned when an update carries a stale version.
	ErrVersionMismatch = errors.New("rule version mismatch")
)

// InvalidRuleError describes which field failed validation.
type InvalidRuleError struct {
	Field  string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule: %s %s", e.Field, e.Reason)
}

func (e *InvalidRuleError) Unwrap() error {
	return ErrInvalidRule
}

func invalid(field, reason string) error {
	return &InvalidRuleError{Field: field, Reason: reason}
}

// Validate checks a rule definition. It never mutates r.
func Validate(r *Rule) error {
	if r == nil {
		return invalid("rule", "is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(r.Metric) == "" {
		return invalid("metric", "is required")
	}
	if !r.Condition.IsValid() {
		return invalid("condition", fmt.Sprintf("%q is not one of greater_than, less_than, equals, percent_increase, percent_decrease", r.Condition))
	}

	// equality on a small-enum metric compares text and needs no number
	textEquality := r.Condition == ConditionEquals && r.ThresholdText != ""
	if !textEquality {
		if r.Threshold == nil {
			return invalid("threshold", "is required")
		}
		if math.IsNaN(*r.Threshold) || math.IsInf(*r.Threshold, 0) {
			return invalid("threshold", "must be a finite number")
		}
	}
	if r.Condition.IsTrend() && r.Threshold != nil && *r.Threshold < 0 {
		return invalid("threshold", "must be >= 0 for percent conditions")
	}

	if !r.Severity.IsValid() {
		return invalid("severity", "must be one of: info, warning, critical")
	}

	if len(r.Scope) == 0 {
		return invalid("scope", "cannot be empty (use \"*\" for all assets)")
	}
	for _, s := range r.Scope {
		if strings.TrimSpace(s) == "" {
			return invalid("scope", "contains an empty asset id")
		}
	}

	for _, c := range r.Channels {
		if !c.IsValid() {
			return invalid("channels", fmt.Sprintf("unknown channel %q", c))
		}
	}
	if r.Enabled && len(r.Channels) == 0 {
		return invalid("channels", "at least one channel is required for an enabled rule")
	}

	return nil
}
