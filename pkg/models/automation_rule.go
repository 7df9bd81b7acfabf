package models

import (
	"strings"
	"time"
)

// Default admission thresholds applied when a rule does not override them.
const (
	DefaultMaxCallsPerDay    = 3
	DefaultNoAnswerThreshold = 10
	DefaultCandidateBatch    = 50
)

// TimeWindow is an inclusive-start, exclusive-end wall-clock window ("HH:MM").
type TimeWindow struct {
	Start string `json:"start" validate:"required,len=5"`
	End   string `json:"end"   validate:"required,len=5"`
}

// Contains reports whether the given wall-clock time falls inside the window.
// Zero-padded HH:MM strings compare correctly lexicographically.
func (w TimeWindow) Contains(hhmm string) bool {
	return hhmm >= w.Start && hhmm < w.End
}

// AutomationRule selects leads for admission into the dialing queue.
// Rules are evaluated in descending priority order each tick.
type AutomationRule struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"     validate:"required"`
	CampaignID  *string        `json:"campaign_id,omitempty"` // nil = account-wide
	RuleType    string         `json:"rule_type" validate:"required"`
	Conditions  map[string]any `json:"conditions,omitempty"`
	Actions     map[string]any `json:"actions,omitempty"`
	DaysOfWeek  []string       `json:"days_of_week,omitempty"` // lowercase weekday names
	TimeWindows []TimeWindow   `json:"time_windows,omitempty"`
	Priority    int            `json:"priority"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ActiveOnDay reports whether the rule may run on the given weekday.
// An empty DaysOfWeek set means every day.
func (r *AutomationRule) ActiveOnDay(day time.Weekday) bool {
	if len(r.DaysOfWeek) == 0 {
		return true
	}

	name := strings.ToLower(day.String())
	for _, d := range r.DaysOfWeek {
		if strings.ToLower(d) == name {
			return true
		}
	}

	return false
}

// ActiveAtTime reports whether the rule may run at the given local wall-clock
// time. An empty TimeWindows set means all day.
func (r *AutomationRule) ActiveAtTime(now time.Time) bool {
	if len(r.TimeWindows) == 0 {
		return true
	}

	hhmm := now.Format("15:04")
	for _, w := range r.TimeWindows {
		if w.Contains(hhmm) {
			return true
		}
	}

	return false
}

// MaxCallsPerDay returns the rule's max_calls_per_day action parameter.
func (r *AutomationRule) MaxCallsPerDay() int {
	return intParam(r.Actions, "max_calls_per_day", DefaultMaxCallsPerDay)
}

// NoAnswerThreshold returns the rule's no_answer_count condition threshold.
func (r *AutomationRule) NoAnswerThreshold() int {
	return intParam(r.Conditions, "no_answer_count", DefaultNoAnswerThreshold)
}

// intParam reads a numeric parameter from a JSON-decoded map. JSON numbers
// arrive as float64.
func intParam(m map[string]any, key string, fallback int) int {
	raw, ok := m[key]
	if !ok {
		return fallback
	}

	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
