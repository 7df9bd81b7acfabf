package models

import "time"

// ViolationType classifies a compliance violation.
type ViolationType string

const (
	ViolationTypeAbandonmentRate ViolationType = "abandonment_rate"
	ViolationTypeCallingHours    ViolationType = "calling_hours"
	ViolationTypeDNC             ViolationType = "dnc_violation"
)

// ComplianceViolation is an append-only audit record; rows are never
// mutated after creation.
type ComplianceViolation struct {
	ID            string        `json:"id"`
	CampaignID    string        `json:"campaign_id" validate:"required"`
	ViolationType ViolationType `json:"violation_type" validate:"required"`
	Reason        string        `json:"reason"`
	DetectedAt    time.Time     `json:"detected_at"`
}
