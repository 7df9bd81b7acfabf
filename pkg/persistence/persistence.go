// Package persistence provides the data storage abstraction layer for the
// orchestration engine.
package persistence

import (
	"context"
	"time"

	"github.com/outdialhq/outdial/pkg/models"
)

// Persistence aggregates the engine's repositories behind one handle.
type Persistence interface {
	Campaigns() CampaignRepository
	Leads() LeadRepository
	Rules() RuleRepository
	DialQueue() DialQueueRepository
	CallRecords() CallRecordRepository
	Workflows() WorkflowRepository
	Progress() ProgressRepository
	Violations() ViolationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CampaignRepository stores campaign configuration and status.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	// UpdateStatus transitions a campaign's status, recording the reason and
	// timestamp when pausing.
	UpdateStatus(ctx context.Context, id string, status models.CampaignStatus, reason string, at time.Time) error
}

// CandidateFilter selects leads eligible for queue admission.
type CandidateFilter struct {
	Owner      string
	CampaignID string // empty = account-wide
	Statuses   []models.LeadStatus
	Limit      int
}

// LeadRepository stores leads.
type LeadRepository interface {
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
	// FindCandidates returns contactable leads matching the filter, always
	// excluding do-not-call leads.
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]*models.Lead, error)
}

// RuleRepository stores automation rules.
type RuleRepository interface {
	GetByID(ctx context.Context, id string) (*models.AutomationRule, error)
	// ListEnabled returns enabled rules ordered by priority descending.
	ListEnabled(ctx context.Context) ([]*models.AutomationRule, error)
	Save(ctx context.Context, rule *models.AutomationRule) error
}

// DialQueueRepository stores pending call attempts.
type DialQueueRepository interface {
	GetByID(ctx context.Context, id string) (*models.DialQueueEntry, error)
	Save(ctx context.Context, entry *models.DialQueueEntry) error
	// HasOpenEntry reports whether a pending or calling entry exists for the
	// (campaign, lead) pair.
	HasOpenEntry(ctx context.Context, campaignID, leadID string) (bool, error)
	// ListPending returns pending entries ordered by priority descending,
	// then scheduled_at ascending.
	ListPending(ctx context.Context, limit int) ([]*models.DialQueueEntry, error)
	UpdateStatus(ctx context.Context, id string, status models.DialQueueStatus, at time.Time) error
	// MarkStuckFailed fails entries stuck in calling since before the cutoff
	// and returns how many were reclaimed.
	MarkStuckFailed(ctx context.Context, before time.Time, at time.Time) (int, error)
}

// CallRecordRepository reads back call attempts written by the transport.
type CallRecordRepository interface {
	Save(ctx context.Context, record *models.CallRecord) error
	// CountInFlight counts records in initiated/ringing/in_progress created
	// at or after the cutoff.
	CountInFlight(ctx context.Context, since time.Time) (int, error)
	// CountForLeadBetween counts call attempts for a lead in [from, to).
	CountForLeadBetween(ctx context.Context, leadID string, from, to time.Time) (int, error)
	// CountNoAnswer counts lifetime no-answer outcomes for a lead.
	CountNoAnswer(ctx context.Context, leadID string) (int, error)
	// CountForLead counts lifetime call attempts for a lead.
	CountForLead(ctx context.Context, leadID string) (int, error)
	// LatestForLead returns the most recent record for a lead, nil when none.
	LatestForLead(ctx context.Context, leadID string) (*models.CallRecord, error)
	// DayStats aggregates a campaign's records in [from, to).
	DayStats(ctx context.Context, campaignID string, from, to time.Time) (*models.CallDayStats, error)
	// MarkStuckFailed fails in-flight records created before the cutoff and
	// returns how many were reclaimed.
	MarkStuckFailed(ctx context.Context, before time.Time, at time.Time) (int, error)
}

// WorkflowRepository stores workflow definitions and their steps.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
}

// ProgressRepository stores per-lead workflow progress rows.
type ProgressRepository interface {
	GetByID(ctx context.Context, id string) (*models.LeadWorkflowProgress, error)
	Save(ctx context.Context, progress *models.LeadWorkflowProgress) error
	// ListDue returns active rows with next_action_at <= now, up to limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.LeadWorkflowProgress, error)
	// ListActiveByLead returns a lead's active and paused rows, optionally
	// scoped to one workflow.
	ListActiveByLead(ctx context.Context, leadID, workflowID string) ([]*models.LeadWorkflowProgress, error)
	// HasActive reports whether the lead already has an active or paused row
	// for the workflow.
	HasActive(ctx context.Context, leadID, workflowID string) (bool, error)
}

// ViolationRepository stores the append-only compliance audit trail.
type ViolationRepository interface {
	Save(ctx context.Context, violation *models.ComplianceViolation) error
	ListByCampaign(ctx context.Context, campaignID string) ([]*models.ComplianceViolation, error)
}
