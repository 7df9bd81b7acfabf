package file

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}

// CampaignRepository is the file-backed campaign store.
type CampaignRepository struct {
	entities *collection[models.Campaign]
}

func (r *CampaignRepository) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	campaign, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if campaign == nil {
		return nil, persistence.ErrCampaignNotFound
	}

	return campaign, nil
}

func (r *CampaignRepository) ListByStatus(_ context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	campaigns, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Campaign, 0)

	for _, campaign := range campaigns {
		if campaign.Status == status {
			matching = append(matching, campaign)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})

	return matching, nil
}

func (r *CampaignRepository) Save(_ context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	if campaign.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		campaign.ID = id
	}

	return r.entities.put(campaign.ID, campaign)
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus, reason string, at time.Time) error {
	campaign, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	campaign.Status = status
	campaign.UpdatedAt = at

	if status == models.CampaignStatusPaused {
		campaign.PauseReason = reason
		campaign.PausedAt = &at
	} else {
		campaign.PauseReason = ""
		campaign.PausedAt = nil
	}

	return r.entities.put(campaign.ID, campaign)
}

// LeadRepository is the file-backed lead store.
type LeadRepository struct {
	entities *collection[models.Lead]
}

func (r *LeadRepository) GetByID(_ context.Context, id string) (*models.Lead, error) {
	lead, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if lead == nil {
		return nil, persistence.ErrLeadNotFound
	}

	return lead, nil
}

func (r *LeadRepository) Save(_ context.Context, lead *models.Lead) error {
	now := time.Now().UTC()

	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	lead.UpdatedAt = now

	if lead.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		lead.ID = id
	}

	return r.entities.put(lead.ID, lead)
}

func (r *LeadRepository) FindCandidates(_ context.Context, filter persistence.CandidateFilter) ([]*models.Lead, error) {
	leads, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	matching := make([]*models.Lead, 0)

	for _, lead := range leads {
		if lead.Owner != filter.Owner || lead.DoNotCall {
			continue
		}

		if !slices.Contains(filter.Statuses, lead.Status) {
			continue
		}

		if filter.CampaignID != "" && (lead.CampaignID == nil || *lead.CampaignID != filter.CampaignID) {
			continue
		}

		matching = append(matching, lead)
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.Before(matching[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matching) > filter.Limit {
		matching = matching[:filter.Limit]
	}

	return matching, nil
}

// RuleRepository is the file-backed automation rule store.
type RuleRepository struct {
	entities *collection[models.AutomationRule]
}

func (r *RuleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	rule, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if rule == nil {
		return nil, persistence.ErrRuleNotFound
	}

	return rule, nil
}

func (r *RuleRepository) ListEnabled(_ context.Context) ([]*models.AutomationRule, error) {
	rules, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.AutomationRule, 0)

	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}

	sort.Slice(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}

		return enabled[i].CreatedAt.Before(enabled[j].CreatedAt)
	})

	return enabled, nil
}

func (r *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	now := time.Now().UTC()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	if rule.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		rule.ID = id
	}

	return r.entities.put(rule.ID, rule)
}

// DialQueueRepository is the file-backed dial queue store. The open-entry
// invariant is advisory here; the postgresql implementation enforces it with
// a partial unique index.
type DialQueueRepository struct {
	entities *collection[models.DialQueueEntry]
}

func (r *DialQueueRepository) GetByID(_ context.Context, id string) (*models.DialQueueEntry, error) {
	entry, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, persistence.ErrQueueEntryNotFound
	}

	return entry, nil
}

func (r *DialQueueRepository) Save(ctx context.Context, entry *models.DialQueueEntry) error {
	now := time.Now().UTC()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	entry.UpdatedAt = now

	if entry.ID == "" {
		if entry.Status.IsOpen() {
			open, err := r.HasOpenEntry(ctx, entry.CampaignID, entry.LeadID)
			if err != nil {
				return err
			}

			if open {
				return persistence.ErrDuplicateQueueEntry
			}
		}

		id, err := newID()
		if err != nil {
			return err
		}

		entry.ID = id
	}

	return r.entities.put(entry.ID, entry)
}

func (r *DialQueueRepository) HasOpenEntry(_ context.Context, campaignID, leadID string) (bool, error) {
	entries, err := r.entities.all()
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.CampaignID == campaignID && entry.LeadID == leadID && entry.Status.IsOpen() {
			return true, nil
		}
	}

	return false, nil
}

func (r *DialQueueRepository) ListPending(_ context.Context, limit int) ([]*models.DialQueueEntry, error) {
	entries, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	pending := make([]*models.DialQueueEntry, 0)

	for _, entry := range entries {
		if entry.Status == models.DialQueueStatusPending {
			pending = append(pending, entry)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}

		return pending[i].ScheduledAt.Before(pending[j].ScheduledAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending, nil
}

func (r *DialQueueRepository) UpdateStatus(ctx context.Context, id string, status models.DialQueueStatus, at time.Time) error {
	entry, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	entry.Status = status
	entry.UpdatedAt = at

	return r.entities.put(entry.ID, entry)
}

func (r *DialQueueRepository) MarkStuckFailed(_ context.Context, before time.Time, at time.Time) (int, error) {
	entries, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	reclaimed := 0

	for _, entry := range entries {
		if entry.Status == models.DialQueueStatusCalling && entry.UpdatedAt.Before(before) {
			entry.Status = models.DialQueueStatusFailed
			entry.UpdatedAt = at

			if err := r.entities.put(entry.ID, entry); err != nil {
				return reclaimed, err
			}

			reclaimed++
		}
	}

	return reclaimed, nil
}

// CallRecordRepository is the file-backed call record store.
type CallRecordRepository struct {
	entities *collection[models.CallRecord]
}

func (r *CallRecordRepository) Save(_ context.Context, record *models.CallRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if record.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		record.ID = id
	}

	return r.entities.put(record.ID, record)
}

func (r *CallRecordRepository) CountInFlight(_ context.Context, since time.Time) (int, error) {
	records, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if slices.Contains(models.InFlightStatuses, record.Status) && !record.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func (r *CallRecordRepository) CountForLeadBetween(_ context.Context, leadID string, from, to time.Time) (int, error) {
	records, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if record.LeadID == leadID && !record.CreatedAt.Before(from) && record.CreatedAt.Before(to) {
			count++
		}
	}

	return count, nil
}

func (r *CallRecordRepository) CountNoAnswer(_ context.Context, leadID string) (int, error) {
	records, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if record.LeadID == leadID && record.Outcome == models.CallOutcomeNoAnswer {
			count++
		}
	}

	return count, nil
}

func (r *CallRecordRepository) CountForLead(_ context.Context, leadID string) (int, error) {
	records, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if record.LeadID == leadID {
			count++
		}
	}

	return count, nil
}

func (r *CallRecordRepository) LatestForLead(_ context.Context, leadID string) (*models.CallRecord, error) {
	records, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	var latest *models.CallRecord

	for _, record := range records {
		if record.LeadID != leadID {
			continue
		}

		if latest == nil || record.CreatedAt.After(latest.CreatedAt) {
			latest = record
		}
	}

	return latest, nil
}

func (r *CallRecordRepository) DayStats(_ context.Context, campaignID string, from, to time.Time) (*models.CallDayStats, error) {
	records, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	var stats models.CallDayStats

	for _, record := range records {
		if record.CampaignID != campaignID || record.CreatedAt.Before(from) || !record.CreatedAt.Before(to) {
			continue
		}

		stats.Total++

		switch record.Outcome {
		case models.CallOutcomeAnswered:
			stats.Answered++
		case models.CallOutcomeAbandoned:
			stats.Abandoned++
		case models.CallOutcomeDNCViolation:
			stats.DNCViolations++
		}
	}

	return &stats, nil
}

func (r *CallRecordRepository) MarkStuckFailed(_ context.Context, before time.Time, at time.Time) (int, error) {
	records, err := r.entities.all()
	if err != nil {
		return 0, err
	}

	reclaimed := 0

	for _, record := range records {
		if slices.Contains(models.InFlightStatuses, record.Status) && record.CreatedAt.Before(before) {
			record.Status = models.CallStatusFailed
			endedAt := at
			record.EndedAt = &endedAt

			if err := r.entities.put(record.ID, record); err != nil {
				return reclaimed, err
			}

			reclaimed++
		}
	}

	return reclaimed, nil
}

// WorkflowRepository is the file-backed workflow definition store.
type WorkflowRepository struct {
	entities *collection[models.WorkflowDefinition]
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	workflow, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		workflow.ID = id
	}

	for _, step := range workflow.Steps {
		if step.ID == "" {
			id, err := newID()
			if err != nil {
				return err
			}

			step.ID = id
		}

		step.WorkflowID = workflow.ID
	}

	return r.entities.put(workflow.ID, workflow)
}

// ProgressRepository is the file-backed workflow progress store.
type ProgressRepository struct {
	entities *collection[models.LeadWorkflowProgress]
}

func (r *ProgressRepository) GetByID(_ context.Context, id string) (*models.LeadWorkflowProgress, error) {
	progress, err := r.entities.get(id)
	if err != nil {
		return nil, err
	}

	if progress == nil {
		return nil, persistence.ErrProgressNotFound
	}

	return progress, nil
}

func (r *ProgressRepository) Save(_ context.Context, progress *models.LeadWorkflowProgress) error {
	if progress.StartedAt.IsZero() {
		progress.StartedAt = time.Now().UTC()
	}

	if progress.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		progress.ID = id
	}

	return r.entities.put(progress.ID, progress)
}

func (r *ProgressRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*models.LeadWorkflowProgress, error) {
	all, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	due := make([]*models.LeadWorkflowProgress, 0)

	for _, progress := range all {
		if progress.Status == models.ProgressStatusActive && !progress.NextActionAt.After(now) {
			due = append(due, progress)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextActionAt.Before(due[j].NextActionAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *ProgressRepository) ListActiveByLead(_ context.Context, leadID, workflowID string) ([]*models.LeadWorkflowProgress, error) {
	all, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	matching := make([]*models.LeadWorkflowProgress, 0)

	for _, progress := range all {
		if progress.LeadID != leadID || progress.Status.IsTerminal() {
			continue
		}

		if workflowID != "" && progress.WorkflowID != workflowID {
			continue
		}

		matching = append(matching, progress)
	}

	return matching, nil
}

func (r *ProgressRepository) HasActive(ctx context.Context, leadID, workflowID string) (bool, error) {
	matching, err := r.ListActiveByLead(ctx, leadID, workflowID)
	if err != nil {
		return false, err
	}

	return len(matching) > 0, nil
}

// ViolationRepository is the file-backed compliance violation store.
type ViolationRepository struct {
	entities *collection[models.ComplianceViolation]
}

func (r *ViolationRepository) Save(_ context.Context, violation *models.ComplianceViolation) error {
	if violation.DetectedAt.IsZero() {
		violation.DetectedAt = time.Now().UTC()
	}

	if violation.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		violation.ID = id
	}

	return r.entities.put(violation.ID, violation)
}

func (r *ViolationRepository) ListByCampaign(_ context.Context, campaignID string) ([]*models.ComplianceViolation, error) {
	all, err := r.entities.all()
	if err != nil {
		return nil, err
	}

	matching := make([]*models.ComplianceViolation, 0)

	for _, violation := range all {
		if violation.CampaignID == campaignID {
			matching = append(matching, violation)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].DetectedAt.After(matching[j].DetectedAt)
	})

	return matching, nil
}
