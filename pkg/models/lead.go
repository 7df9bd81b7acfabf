package models

import "time"

// LeadStatus represents where a lead sits in the contact funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusCallback  LeadStatus = "callback"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusClosed    LeadStatus = "closed"
)

// ContactableStatuses are the lead statuses the rule evaluator may admit
// into the dialing queue.
var ContactableStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusCallback}

// Lead represents a contact owned by an operator account.
type Lead struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"        validate:"required"`
	CampaignID      *string    `json:"campaign_id,omitempty"`
	PhoneNumber     string     `json:"phone_number" validate:"required,e164"`
	Status          LeadStatus `json:"status"       validate:"required"`
	DoNotCall       bool       `json:"do_not_call"`
	Disposition     string     `json:"disposition,omitempty"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
