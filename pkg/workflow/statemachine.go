// Package workflow advances leads through workflow definitions one step at
// a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/eventbus"
	"github.com/outdialhq/outdial/pkg/events"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// DefaultBatchLimit caps how many due progress rows one ExecutePending pass
// handles.
const DefaultBatchLimit = 100

var (
	ErrDuplicateEnrollment = errors.New("lead already has an active progress for this workflow")
	ErrEmptyWorkflow       = errors.New("workflow has no steps")
	ErrReasonRequired      = errors.New("removal reason is required")
	ErrInvalidTransition   = errors.New("invalid progress status transition")
)

// ItemFailure records one progress row that could not be advanced.
type ItemFailure struct {
	ProgressID string `json:"progress_id"`
	Error      string `json:"error"`
}

// BatchResult summarizes one ExecutePending pass.
type BatchResult struct {
	Processed int           `json:"processed"`
	Executed  int           `json:"executed"`
	Completed int           `json:"completed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// StateMachine owns lead workflow progress transitions.
type StateMachine struct {
	persistence persistence.Persistence
	queue       *dialqueue.Service
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewStateMachine(persist persistence.Persistence, queue *dialqueue.Service, publisher eventbus.EventPublisher, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		persistence: persist,
		queue:       queue,
		publisher:   publisher,
		logger:      logger.With("module", "workflow"),
	}
}

// StartWorkflow enrolls a lead into a workflow at its first step. A lead may
// hold at most one non-terminal progress per workflow.
func (sm *StateMachine) StartWorkflow(ctx context.Context, leadID, workflowID, campaignID string, now time.Time) (*models.LeadWorkflowProgress, error) {
	definition, err := sm.persistence.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	first := definition.FirstStep()
	if first == nil {
		return nil, ErrEmptyWorkflow
	}

	active, err := sm.persistence.Progress().HasActive(ctx, leadID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active enrollments: %w", err)
	}

	if active {
		return nil, ErrDuplicateEnrollment
	}

	nextActionAt, err := sm.scheduleFor(first, now)
	if err != nil {
		return nil, err
	}

	progress := &models.LeadWorkflowProgress{
		LeadID:        leadID,
		WorkflowID:    workflowID,
		CampaignID:    campaignID,
		CurrentStepID: first.ID,
		Status:        models.ProgressStatusActive,
		NextActionAt:  nextActionAt,
		StartedAt:     now,
	}

	err = sm.persistence.Progress().Save(ctx, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	sm.logger.InfoContext(ctx, "Lead enrolled in workflow",
		"lead_id", leadID,
		"workflow_id", workflowID,
		"first_step", first.StepNumber,
	)

	return progress, nil
}

// ExecutePending advances every active progress row whose NextActionAt has
// arrived. Rows are independent: a failing row is recorded and the batch
// keeps going.
func (sm *StateMachine) ExecutePending(ctx context.Context, now time.Time, batchLimit int) (*BatchResult, error) {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}

	due, err := sm.persistence.Progress().ListDue(ctx, now, batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due progress: %w", err)
	}

	result := &BatchResult{}

	for _, progress := range due {
		result.Processed++

		completed, err := sm.executeStep(ctx, progress, now)
		if err != nil {
			result.Failures = append(result.Failures, ItemFailure{ProgressID: progress.ID, Error: err.Error()})

			sm.logger.WarnContext(ctx, "Failed to advance workflow progress",
				"progress_id", progress.ID,
				"lead_id", progress.LeadID,
				"error", err,
			)

			continue
		}

		result.Executed++
		if completed {
			result.Completed++
		}
	}

	return result, nil
}

// executeStep runs the progress row's current step and advances it. Returns
// true when the workflow reached completion.
func (sm *StateMachine) executeStep(ctx context.Context, progress *models.LeadWorkflowProgress, now time.Time) (bool, error) {
	definition, err := sm.persistence.Workflows().GetByID(ctx, progress.WorkflowID)
	if err != nil {
		return false, fmt.Errorf("failed to load workflow: %w", err)
	}

	step := definition.StepByID(progress.CurrentStepID)
	if step == nil {
		return false, fmt.Errorf("current step %s no longer exists in workflow %s", progress.CurrentStepID, progress.WorkflowID)
	}

	config, err := step.DecodeConfig()
	if err != nil {
		return false, err
	}

	skipNext := false

	switch cfg := config.(type) {
	case models.CallStepConfig:
		err = sm.executeCallStep(ctx, progress, cfg)
	case models.SMSStepConfig:
		err = sm.executeSMSStep(ctx, progress, cfg.Message, "", "")
	case models.AISMSStepConfig:
		err = sm.executeSMSStep(ctx, progress, "", cfg.Prompt, cfg.Tone)
	case models.WaitStepConfig:
		// The delay was applied when this step was scheduled.
	case models.ConditionStepConfig:
		var action models.BranchAction

		action, err = sm.evaluateCondition(ctx, progress, cfg)
		if err == nil {
			switch action {
			case models.BranchActionEndWorkflow:
				err = sm.complete(ctx, progress, now)
				if err != nil {
					return false, err
				}

				sm.publishStepExecuted(ctx, progress, step)

				return true, nil
			case models.BranchActionSkip:
				skipNext = true
			case models.BranchActionContinue:
			}
		}
	}

	if err != nil {
		return false, err
	}

	sm.publishStepExecuted(ctx, progress, step)

	return sm.advance(ctx, progress, definition, step, skipNext, now)
}

// advance moves the progress row to the step after the current one, or two
// ahead when a condition branch skips. Running out of steps completes the
// workflow.
func (sm *StateMachine) advance(ctx context.Context, progress *models.LeadWorkflowProgress, definition *models.WorkflowDefinition, step *models.WorkflowStep, skipNext bool, now time.Time) (bool, error) {
	following := definition.StepsAfter(step.StepNumber)
	if skipNext && len(following) > 0 {
		following = following[1:]
	}

	if len(following) == 0 {
		err := sm.complete(ctx, progress, now)

		return err == nil, err
	}

	next := following[0]

	nextActionAt, err := sm.scheduleFor(next, now)
	if err != nil {
		return false, err
	}

	lastActionAt := now
	progress.CurrentStepID = next.ID
	progress.NextActionAt = nextActionAt
	progress.LastActionAt = &lastActionAt

	err = sm.persistence.Progress().Save(ctx, progress)
	if err != nil {
		return false, fmt.Errorf("failed to save progress: %w", err)
	}

	return false, nil
}

func (sm *StateMachine) complete(ctx context.Context, progress *models.LeadWorkflowProgress, now time.Time) error {
	if !progress.Status.CanTransitionTo(models.ProgressStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, progress.Status, models.ProgressStatusCompleted)
	}

	completedAt := now
	lastActionAt := now
	progress.Status = models.ProgressStatusCompleted
	progress.CompletedAt = &completedAt
	progress.LastActionAt = &lastActionAt

	err := sm.persistence.Progress().Save(ctx, progress)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

func (sm *StateMachine) executeCallStep(ctx context.Context, progress *models.LeadWorkflowProgress, cfg models.CallStepConfig) error {
	lead, err := sm.persistence.Leads().GetByID(ctx, progress.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}

	entry := &models.DialQueueEntry{
		CampaignID:  progress.CampaignID,
		LeadID:      lead.ID,
		PhoneNumber: lead.PhoneNumber,
		Priority:    cfg.Priority,
		Status:      models.DialQueueStatusPending,
		ScheduledAt: progress.NextActionAt,
	}

	err = sm.queue.Admit(ctx, entry)
	if err != nil {
		if persistence.IsDuplicateQueueEntry(err) {
			// The lead is already waiting for a call; nothing more to do.
			return nil
		}

		return err
	}

	if sm.publisher == nil {
		return nil
	}

	event := events.CallDispatchRequested{
		BaseEvent:    events.NewBaseEvent(events.CallDispatchRequestedEvent, progress.CampaignID),
		QueueEntryID: entry.ID,
		LeadID:       lead.ID,
		PhoneNumber:  lead.PhoneNumber,
		Priority:     cfg.Priority,
	}

	err = sm.publisher.Publish(ctx, progress.CampaignID, event)
	if err != nil {
		return fmt.Errorf("failed to publish call intent: %w", err)
	}

	return nil
}

func (sm *StateMachine) executeSMSStep(ctx context.Context, progress *models.LeadWorkflowProgress, message, prompt, tone string) error {
	lead, err := sm.persistence.Leads().GetByID(ctx, progress.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}

	if sm.publisher == nil {
		return nil
	}

	event := events.SMSIntentCreated{
		BaseEvent:   events.NewBaseEvent(events.SMSIntentCreatedEvent, progress.CampaignID),
		LeadID:      lead.ID,
		PhoneNumber: lead.PhoneNumber,
		Message:     message,
		Prompt:      prompt,
		Tone:        tone,
		Generated:   prompt != "",
	}

	err = sm.publisher.Publish(ctx, progress.CampaignID, event)
	if err != nil {
		return fmt.Errorf("failed to publish sms intent: %w", err)
	}

	return nil
}

// evaluateCondition resolves the configured lead attribute and picks the
// then or else branch.
func (sm *StateMachine) evaluateCondition(ctx context.Context, progress *models.LeadWorkflowProgress, cfg models.ConditionStepConfig) (models.BranchAction, error) {
	value, err := sm.fieldValue(ctx, progress, cfg.Field)
	if err != nil {
		return "", err
	}

	matched := value == cfg.Value
	if cfg.Operator == models.ConditionOperatorNotEquals {
		matched = !matched
	}

	if matched {
		return cfg.ThenAction, nil
	}

	return cfg.ElseAction, nil
}

func (sm *StateMachine) fieldValue(ctx context.Context, progress *models.LeadWorkflowProgress, field models.ConditionField) (string, error) {
	switch field {
	case models.ConditionFieldDisposition, models.ConditionFieldLeadStatus:
		lead, err := sm.persistence.Leads().GetByID(ctx, progress.LeadID)
		if err != nil {
			return "", fmt.Errorf("failed to load lead: %w", err)
		}

		if field == models.ConditionFieldDisposition {
			return lead.Disposition, nil
		}

		return string(lead.Status), nil
	case models.ConditionFieldCallOutcome:
		record, err := sm.persistence.CallRecords().LatestForLead(ctx, progress.LeadID)
		if err != nil {
			return "", fmt.Errorf("failed to load latest call: %w", err)
		}

		if record == nil {
			return "", nil
		}

		return string(record.Outcome), nil
	case models.ConditionFieldAttemptCount:
		count, err := sm.persistence.CallRecords().CountForLead(ctx, progress.LeadID)
		if err != nil {
			return "", fmt.Errorf("failed to count call attempts: %w", err)
		}

		return strconv.Itoa(count), nil
	default:
		return "", fmt.Errorf("unknown condition field: %q", field)
	}
}

// scheduleFor computes when a step becomes due. Wait steps push NextActionAt
// out by their configured delay and optionally snap to a wall-clock time,
// rolling to the next day when that time already passed. Every other step
// type is due immediately.
func (sm *StateMachine) scheduleFor(step *models.WorkflowStep, now time.Time) (time.Time, error) {
	config, err := step.DecodeConfig()
	if err != nil {
		return time.Time{}, err
	}

	wait, ok := config.(models.WaitStepConfig)
	if !ok {
		return now, nil
	}

	due := now.Add(wait.Delay())

	if wait.TimeOfDay != "" {
		due, err = snapToTimeOfDay(due, wait.TimeOfDay)
		if err != nil {
			return time.Time{}, err
		}
	}

	return due, nil
}

func snapToTimeOfDay(t time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time_of_day %q: %w", hhmm, err)
	}

	snapped := time.Date(t.Year(), t.Month(), t.Day(), parsed.Hour(), parsed.Minute(), 0, 0, t.Location())
	if snapped.Before(t) {
		snapped = snapped.AddDate(0, 0, 1)
	}

	return snapped, nil
}

// RemoveFromWorkflow moves the lead's non-terminal progress rows to removed.
// With a workflowID the removal is scoped to that workflow, otherwise every
// active enrollment of the lead is removed. The reason is mandatory.
func (sm *StateMachine) RemoveFromWorkflow(ctx context.Context, leadID, workflowID, reason string, now time.Time) (int, error) {
	if reason == "" {
		return 0, ErrReasonRequired
	}

	rows, err := sm.persistence.Progress().ListActiveByLead(ctx, leadID, workflowID)
	if err != nil {
		return 0, fmt.Errorf("failed to list enrollments: %w", err)
	}

	removed := 0

	for _, progress := range rows {
		if !progress.Status.CanTransitionTo(models.ProgressStatusRemoved) {
			continue
		}

		lastActionAt := now
		progress.Status = models.ProgressStatusRemoved
		progress.RemovalReason = reason
		progress.LastActionAt = &lastActionAt

		err = sm.persistence.Progress().Save(ctx, progress)
		if err != nil {
			return removed, fmt.Errorf("failed to save progress: %w", err)
		}

		removed++
	}

	return removed, nil
}

// PauseWorkflow suspends an active progress row. NextActionAt is left as is.
func (sm *StateMachine) PauseWorkflow(ctx context.Context, progressID string, now time.Time) error {
	return sm.transition(ctx, progressID, models.ProgressStatusPaused, now)
}

// ResumeWorkflow reactivates a paused progress row. NextActionAt is left
// untouched, so an overdue step runs on the next batch.
func (sm *StateMachine) ResumeWorkflow(ctx context.Context, progressID string, now time.Time) error {
	return sm.transition(ctx, progressID, models.ProgressStatusActive, now)
}

func (sm *StateMachine) transition(ctx context.Context, progressID string, next models.ProgressStatus, now time.Time) error {
	progress, err := sm.persistence.Progress().GetByID(ctx, progressID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	if !progress.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, progress.Status, next)
	}

	lastActionAt := now
	progress.Status = next
	progress.LastActionAt = &lastActionAt

	err = sm.persistence.Progress().Save(ctx, progress)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

func (sm *StateMachine) publishStepExecuted(ctx context.Context, progress *models.LeadWorkflowProgress, step *models.WorkflowStep) {
	if sm.publisher == nil {
		return
	}

	event := events.WorkflowStepExecuted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowStepExecutedEvent, progress.CampaignID),
		ProgressID: progress.ID,
		WorkflowID: progress.WorkflowID,
		LeadID:     progress.LeadID,
		StepNumber: step.StepNumber,
		StepType:   step.StepType,
	}

	err := sm.publisher.Publish(ctx, progress.CampaignID, event)
	if err != nil {
		sm.logger.ErrorContext(ctx, "Failed to publish step executed event",
			"progress_id", progress.ID,
			"error", err,
		)
	}
}
