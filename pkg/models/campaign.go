// Package models defines the core domain models for outbound campaign orchestration.
package models

import "time"

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"    // Eligible for dialing and monitoring
	CampaignStatusPaused    CampaignStatus = "paused"    // Halted by operator or compliance
	CampaignStatusCompleted CampaignStatus = "completed" // Finished, never dialed again
)

// Campaign represents a configured outbound-calling effort with its own
// calling window, attempt limits, and optional workflow.
type Campaign struct {
	ID                 string         `json:"id"`
	Owner              string         `json:"owner"                 validate:"required"`
	Name               string         `json:"name"                  validate:"required,min=3"`
	Status             CampaignStatus `json:"status"                validate:"required,oneof=active paused completed"`
	CallingHoursStart  string         `json:"calling_hours_start"   validate:"required,len=5"` // "HH:MM"
	CallingHoursEnd    string         `json:"calling_hours_end"     validate:"required,len=5"` // "HH:MM"
	Timezone           string         `json:"timezone"              validate:"required"`       // IANA name
	MaxAttempts        int            `json:"max_attempts"          validate:"min=1"`
	MaxConcurrentCalls int            `json:"max_concurrent_calls"  validate:"min=1"`
	WorkflowID         *string        `json:"workflow_id,omitempty"`
	PauseReason        string         `json:"pause_reason,omitempty"`
	PausedAt           *time.Time     `json:"paused_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Location resolves the campaign's IANA timezone, falling back to UTC when
// the name does not parse.
func (c *Campaign) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
