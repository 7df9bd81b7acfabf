package models

import "time"

// DialQueueStatus represents the state of a queued call attempt.
type DialQueueStatus string

const (
	DialQueueStatusPending   DialQueueStatus = "pending"
	DialQueueStatusCalling   DialQueueStatus = "calling"
	DialQueueStatusCompleted DialQueueStatus = "completed"
	DialQueueStatusFailed    DialQueueStatus = "failed"
	DialQueueStatusPaused    DialQueueStatus = "paused"
)

// IsOpen reports whether the status still occupies the (campaign, lead)
// admission slot. At most one open entry may exist per pair.
func (s DialQueueStatus) IsOpen() bool {
	return s == DialQueueStatusPending || s == DialQueueStatusCalling
}

// DialQueueEntry is a persisted pending call attempt awaiting dispatch by
// the external dialer.
type DialQueueEntry struct {
	ID          string          `json:"id"`
	CampaignID  string          `json:"campaign_id"  validate:"required"`
	LeadID      string          `json:"lead_id"      validate:"required"`
	PhoneNumber string          `json:"phone_number" validate:"required"`
	Priority    int             `json:"priority"`
	Status      DialQueueStatus `json:"status"       validate:"required"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
