package models

import "time"

// ProgressStatus represents the lifecycle state of a lead's journey through
// a workflow. completed and removed are terminal.
type ProgressStatus string

const (
	ProgressStatusActive    ProgressStatus = "active"
	ProgressStatusPaused    ProgressStatus = "paused"
	ProgressStatusCompleted ProgressStatus = "completed"
	ProgressStatusRemoved   ProgressStatus = "removed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressStatusCompleted || s == ProgressStatusRemoved
}

// CanTransitionTo enforces the progress state machine:
// active -> completed, active <-> paused, active/paused -> removed.
func (s ProgressStatus) CanTransitionTo(next ProgressStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case ProgressStatusActive:
		return next == ProgressStatusCompleted || next == ProgressStatusPaused || next == ProgressStatusRemoved
	case ProgressStatusPaused:
		return next == ProgressStatusActive || next == ProgressStatusRemoved
	default:
		return false
	}
}

// LeadWorkflowProgress tracks one lead advancing through one workflow.
type LeadWorkflowProgress struct {
	ID            string         `json:"id"`
	LeadID        string         `json:"lead_id"     validate:"required"`
	WorkflowID    string         `json:"workflow_id" validate:"required"`
	CampaignID    string         `json:"campaign_id"`
	CurrentStepID string         `json:"current_step_id"`
	Status        ProgressStatus `json:"status"`
	NextActionAt  time.Time      `json:"next_action_at"`
	StartedAt     time.Time      `json:"started_at"`
	LastActionAt  *time.Time     `json:"last_action_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	RemovalReason string         `json:"removal_reason,omitempty"`
}
