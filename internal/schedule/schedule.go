// Package schedule decides when non-critical notifications may be sent.
package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hakaaaa22/Elarian-Group-Smart-City-sub003/internal/rules"
)

// DefaultGroupInterval is the window in which repeated triggers of one rule are merged.
const DefaultGroupInterval = 5 * time.Minute

const clockLayout = "15:04"

// ErrInvalidSchedule wraps every schedule validation failure.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule is the per-installation notification window.
type Schedule struct {
	Enabled              bool           `json:"enabled" yaml:"enabled"`
	Weekdays             []time.Weekday `json:"weekdays" yaml:"weekdays"`
	Start                string         `json:"start" yaml:"start"`
	End                  string         `json:"end" yaml:"end"`
	Location             string         `json:"timezone,omitempty" yaml:"timezone"`
	AllowCriticalAnytime bool           `json:"allow_critical_anytime" yaml:"allow_critical_anytime"`
	QuietMode            bool           `json:"quiet_mode" yaml:"quiet_mode"`
	GroupInterval        Duration       `json:"group_interval" yaml:"group_interval"`
}

// Default returns a disabled schedule (always allow) with the default grouping interval.
func Default() Schedule {
	return Schedule{
		Enabled: false,
		Weekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		Start:                "09:00",
		End:                  "17:00",
		Location:             "UTC",
		AllowCriticalAnytime: true,
		GroupInterval:        Duration(DefaultGroupInterval),
	}
}

// Validate checks the clock format, the weekdays and the timezone.
func (s Schedule) Validate() error {
	if err := s.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return nil
}

func (s Schedule) validate() error {
	if _, err := parseClock(s.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseClock(s.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	for _, d := range s.Weekdays {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("weekdays: %d is not a weekday", d)
		}
	}
	if _, err := s.location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if s.GroupInterval < 0 {
		return fmt.Errorf("group_interval cannot be negative")
	}
	return nil
}

// Grouping returns the grouping interval, falling back to the default when unset.
func (s Schedule) Grouping() time.Duration {
	if s.GroupInterval <= 0 {
		return DefaultGroupInterval
	}
	return time.Duration(s.GroupInterval)
}

func (s Schedule) location() (*time.Location, error) {
	if s.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Location)
}

// IsNotificationAllowed reports whether a notification of the given severity may
// be sent at the given time. It has no side effects.
func IsNotificationAllowed(s Schedule, sev rules.Severity, at time.Time) bool {
	if !s.Enabled {
		return true
	}
	if sev == rules.SeverityCritical && s.AllowCriticalAnytime {
		return true
	}
	if s.QuietMode {
		return false
	}

	loc, err := s.location()
	if err != nil {
		loc = time.UTC
	}
	local := at.In(loc)
	if !slices.Contains(s.Weekdays, local.Weekday()) {
		return false
	}
	return inWindow(s, local)
}

// inWindow checks [start, end) against the time of day. start > end wraps past midnight.
func inWindow(s Schedule, local time.Time) bool {
	start, err := parseClock(s.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(s.End)
	if err != nil {
		return false
	}
	now := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return false
	case start < end:
		return now >= start && now < end
	default:
		return now >= start || now < end
	}
}

// NextWindowOpen returns the first minute at or after at when a warning-level
// notification would be allowed. ok is false if the schedule never opens.
func NextWindowOpen(s Schedule, at time.Time) (next time.Time, ok bool) {
	if IsNotificationAllowed(s, rules.SeverityWarning, at) {
		return at, true
	}
	if s.QuietMode || len(s.Weekdays) == 0 {
		return time.Time{}, false
	}
	t := at.Truncate(time.Minute).Add(time.Minute)
	// one week of minutes covers every weekday/window combination
	for i := 0; i < 7*24*60; i++ {
		if IsNotificationAllowed(s, rules.SeverityWarning, t) {
			return t, true
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}, false
}

// parseClock converts "HH:MM" to minutes past midnight.
func parseClock(v string) (int, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
