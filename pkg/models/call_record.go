package models

import "time"

// CallStatus tracks a call attempt through the transport layer.
type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// InFlightStatuses are the call states counted against concurrency capacity.
var InFlightStatuses = []CallStatus{CallStatusInitiated, CallStatusRinging, CallStatusInProgress}

// CallOutcome is the terminal disposition of a call attempt, written by the
// external transport layer.
type CallOutcome string

const (
	CallOutcomeAnswered     CallOutcome = "answered"
	CallOutcomeNoAnswer     CallOutcome = "no_answer"
	CallOutcomeBusy         CallOutcome = "busy"
	CallOutcomeAbandoned    CallOutcome = "abandoned"
	CallOutcomeVoicemail    CallOutcome = "voicemail"
	CallOutcomeDNCViolation CallOutcome = "dnc_violation"
)

// CallRecord is the per-attempt log row the orchestration engine reads back
// for pacing, compliance, and workflow branching. The engine never writes
// transport fields itself.
type CallRecord struct {
	ID              string      `json:"id"`
	CampaignID      string      `json:"campaign_id" validate:"required"`
	LeadID          string      `json:"lead_id"     validate:"required"`
	PhoneNumber     string      `json:"phone_number"`
	Status          CallStatus  `json:"status"`
	Outcome         CallOutcome `json:"outcome,omitempty"`
	DurationSeconds int         `json:"duration_seconds"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	EndedAt         *time.Time  `json:"ended_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// CallDayStats aggregates one campaign-day of call records for compliance.
type CallDayStats struct {
	Total         int `json:"total"`
	Answered      int `json:"answered"`
	Abandoned     int `json:"abandoned"`
	DNCViolations int `json:"dnc_violations"`
}

// AbandonmentRate returns abandoned/answered, or 0 when nothing was answered.
func (s CallDayStats) AbandonmentRate() float64 {
	if s.Answered == 0 {
		return 0
	}

	return float64(s.Abandoned) / float64(s.Answered)
}
