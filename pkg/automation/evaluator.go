// Package automation evaluates dialing automation rules and feeds the
// dialing queue.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outdialhq/outdial/pkg/dnc"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

// Skip reasons recorded per rule when a gate rejects it for this tick.
const (
	SkipNotActiveDay      = "not_active_day"
	SkipOutsideTimeWindow = "outside_time_window"
)

// RuleResult describes what a single rule did during a tick.
type RuleResult struct {
	RuleID      string `json:"rule_id"`
	SkipReason  string `json:"skip_reason,omitempty"`
	LeadsQueued int    `json:"leads_queued"`
	Error       string `json:"error,omitempty"`
}

// TickResult aggregates one evaluation pass over all enabled rules.
type TickResult struct {
	RulesProcessed int          `json:"rules_processed"`
	LeadsQueued    int          `json:"leads_queued"`
	RuleResults    []RuleResult `json:"rule_results"`
}

// Evaluator runs enabled automation rules against candidate leads.
type Evaluator struct {
	persistence    persistence.Persistence
	registry       dnc.Registry
	logger         *slog.Logger
	candidateBatch int
}

type Option func(*Evaluator)

// WithCandidateBatch overrides the per-rule candidate fetch cap.
func WithCandidateBatch(n int) Option {
	return func(e *Evaluator) {
		e.candidateBatch = n
	}
}

// WithDNCRegistry adds a shared do-not-call registry check on top of the
// lead's own DoNotCall flag.
func WithDNCRegistry(registry dnc.Registry) Option {
	return func(e *Evaluator) {
		e.registry = registry
	}
}

func NewEvaluator(persist persistence.Persistence, logger *slog.Logger, opts ...Option) *Evaluator {
	evaluator := &Evaluator{
		persistence:    persist,
		logger:         logger.With("module", "automation"),
		candidateBatch: models.DefaultCandidateBatch,
	}

	for _, opt := range opts {
		opt(evaluator)
	}

	return evaluator
}

// RunTick evaluates every enabled rule in priority order. A failing rule is
// recorded in its RuleResult and never aborts the tick.
func (e *Evaluator) RunTick(ctx context.Context, now time.Time) (*TickResult, error) {
	rules, err := e.persistence.Rules().ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled rules: %w", err)
	}

	result := &TickResult{RuleResults: make([]RuleResult, 0, len(rules))}

	for _, rule := range rules {
		result.RulesProcessed++

		ruleResult := e.evaluateRule(ctx, rule, now)
		result.LeadsQueued += ruleResult.LeadsQueued
		result.RuleResults = append(result.RuleResults, ruleResult)
	}

	e.logger.InfoContext(ctx, "Rule evaluation tick finished",
		"rules_processed", result.RulesProcessed,
		"leads_queued", result.LeadsQueued,
	)

	return result, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule *models.AutomationRule, now time.Time) RuleResult {
	ruleResult := RuleResult{RuleID: rule.ID}

	localNow, err := e.localTime(ctx, rule, now)
	if err != nil {
		ruleResult.Error = err.Error()

		return ruleResult
	}

	if !rule.ActiveOnDay(localNow.Weekday()) {
		ruleResult.SkipReason = SkipNotActiveDay

		return ruleResult
	}

	if !rule.ActiveAtTime(localNow) {
		ruleResult.SkipReason = SkipOutsideTimeWindow

		return ruleResult
	}

	filter := persistence.CandidateFilter{
		Owner:    rule.Owner,
		Statuses: models.ContactableStatuses,
		Limit:    e.candidateBatch,
	}
	if rule.CampaignID != nil {
		filter.CampaignID = *rule.CampaignID
	}

	leads, err := e.persistence.Leads().FindCandidates(ctx, filter)
	if err != nil {
		ruleResult.Error = fmt.Errorf("failed to find candidate leads: %w", err).Error()

		return ruleResult
	}

	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, localNow.Location())

	for _, lead := range leads {
		queued, err := e.admitLead(ctx, rule, lead, dayStart, now)
		if err != nil {
			e.logger.WarnContext(ctx, "Skipping lead after admission check failure",
				"rule_id", rule.ID,
				"lead_id", lead.ID,
				"error", err,
			)

			continue
		}

		if queued {
			ruleResult.LeadsQueued++
		}
	}

	return ruleResult
}

// localTime resolves the wall-clock time the rule's gates are judged in.
// Campaign-scoped rules run in the campaign's timezone, account-wide rules
// in UTC.
func (e *Evaluator) localTime(ctx context.Context, rule *models.AutomationRule, now time.Time) (time.Time, error) {
	if rule.CampaignID == nil {
		return now.UTC(), nil
	}

	campaign, err := e.persistence.Campaigns().GetByID(ctx, *rule.CampaignID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load rule campaign: %w", err)
	}

	return now.In(campaign.Location()), nil
}

// admitLead applies the per-lead admission checks and inserts a pending
// queue entry when they all pass.
func (e *Evaluator) admitLead(ctx context.Context, rule *models.AutomationRule, lead *models.Lead, dayStart, now time.Time) (bool, error) {
	campaignID := ""

	switch {
	case rule.CampaignID != nil:
		campaignID = *rule.CampaignID
	case lead.CampaignID != nil:
		campaignID = *lead.CampaignID
	default:
		// Nothing to queue against.
		return false, nil
	}

	if e.registry != nil {
		listed, err := e.registry.IsListed(ctx, lead.PhoneNumber)
		if err != nil {
			// Registry outages fail open; the lead's own DoNotCall flag was
			// already filtered on.
			e.logger.WarnContext(ctx, "Do-not-call registry check failed",
				"lead_id", lead.ID,
				"error", err,
			)
		} else if listed {
			return false, nil
		}
	}

	callsToday, err := e.persistence.CallRecords().CountForLeadBetween(ctx, lead.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("failed to count today's calls: %w", err)
	}

	if callsToday >= rule.MaxCallsPerDay() {
		return false, nil
	}

	noAnswers, err := e.persistence.CallRecords().CountNoAnswer(ctx, lead.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count no-answer calls: %w", err)
	}

	if noAnswers >= rule.NoAnswerThreshold() {
		return false, nil
	}

	open, err := e.persistence.DialQueue().HasOpenEntry(ctx, campaignID, lead.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check open queue entries: %w", err)
	}

	if open {
		return false, nil
	}

	entry := &models.DialQueueEntry{
		CampaignID:  campaignID,
		LeadID:      lead.ID,
		PhoneNumber: lead.PhoneNumber,
		Priority:    rule.Priority,
		Status:      models.DialQueueStatusPending,
		ScheduledAt: now,
	}

	err = e.persistence.DialQueue().Save(ctx, entry)
	if err != nil {
		if persistence.IsDuplicateQueueEntry(err) {
			// Lost the race to a concurrent tick; the lead is queued either way.
			return false, nil
		}

		return false, fmt.Errorf("failed to save queue entry: %w", err)
	}

	return true, nil
}
