package automation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outdialhq/outdial/pkg/dnc"
	"github.com/outdialhq/outdial/pkg/log"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/persistence/file"
)

// Tuesday 10:30 UTC.
var tickTime = time.Date(2025, 3, 11, 10, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func seedLead(t *testing.T, store *file.Persistence, phone string, campaignID string) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		Owner:       "acct-1",
		PhoneNumber: phone,
		Status:      models.LeadStatusNew,
	}
	if campaignID != "" {
		lead.CampaignID = &campaignID
	}

	require.NoError(t, store.Leads().Save(t.Context(), lead))

	return lead
}

func seedRule(t *testing.T, store *file.Persistence, mutate func(*models.AutomationRule)) *models.AutomationRule {
	t.Helper()

	campaignID := "camp-1"
	rule := &models.AutomationRule{
		Owner:      "acct-1",
		CampaignID: &campaignID,
		RuleType:   "daily_dial",
		Priority:   5,
		Enabled:    true,
	}
	if mutate != nil {
		mutate(rule)
	}

	require.NoError(t, store.Rules().Save(t.Context(), rule))

	return rule
}

func seedCampaign(t *testing.T, store *file.Persistence) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		ID:                 "camp-1",
		Owner:              "acct-1",
		Name:               "Test Campaign",
		Status:             models.CampaignStatusActive,
		CallingHoursStart:  "09:00",
		CallingHoursEnd:    "17:00",
		Timezone:           "UTC",
		MaxConcurrentCalls: 10,
	}
	require.NoError(t, store.Campaigns().Save(t.Context(), campaign))

	return campaign
}

func TestRunTick_QueuesEligibleLeads(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, nil)
	seedLead(t, store, "+15550000001", "camp-1")
	seedLead(t, store, "+15550000002", "camp-1")

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RulesProcessed)
	assert.Equal(t, 2, result.LeadsQueued)

	pending, err := store.DialQueue().ListPending(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 5, pending[0].Priority, "entry inherits the rule priority")
	assert.Equal(t, models.DialQueueStatusPending, pending[0].Status)
}

func TestRunTick_SkipsRuleOnInactiveDay(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, func(rule *models.AutomationRule) {
		rule.DaysOfWeek = []string{"saturday", "sunday"}
	})
	seedLead(t, store, "+15550000001", "camp-1")

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	require.Len(t, result.RuleResults, 1)
	assert.Equal(t, SkipNotActiveDay, result.RuleResults[0].SkipReason)
	assert.Zero(t, result.LeadsQueued)
}

func TestRunTick_SkipsRuleOutsideTimeWindow(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, func(rule *models.AutomationRule) {
		rule.TimeWindows = []models.TimeWindow{{Start: "14:00", End: "17:00"}}
	})
	seedLead(t, store, "+15550000001", "camp-1")

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	require.Len(t, result.RuleResults, 1)
	assert.Equal(t, SkipOutsideTimeWindow, result.RuleResults[0].SkipReason)
}

func TestRunTick_RespectsMaxCallsPerDay(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, func(rule *models.AutomationRule) {
		rule.Actions = map[string]any{"max_calls_per_day": float64(2)}
	})
	lead := seedLead(t, store, "+15550000001", "camp-1")

	for range 2 {
		record := &models.CallRecord{
			CampaignID: "camp-1",
			LeadID:     lead.ID,
			Status:     models.CallStatusCompleted,
			Outcome:    models.CallOutcomeNoAnswer,
			CreatedAt:  tickTime.Add(-time.Hour),
		}
		require.NoError(t, store.CallRecords().Save(t.Context(), record))
	}

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Zero(t, result.LeadsQueued, "lead hit today's call cap")
}

func TestRunTick_RespectsNoAnswerThreshold(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, func(rule *models.AutomationRule) {
		rule.Conditions = map[string]any{"no_answer_count": float64(3)}
		rule.Actions = map[string]any{"max_calls_per_day": float64(100)}
	})
	lead := seedLead(t, store, "+15550000001", "camp-1")

	// Spread over past days so the daily cap does not interfere.
	for i := range 3 {
		record := &models.CallRecord{
			CampaignID: "camp-1",
			LeadID:     lead.ID,
			Status:     models.CallStatusCompleted,
			Outcome:    models.CallOutcomeNoAnswer,
			CreatedAt:  tickTime.AddDate(0, 0, -(i + 1)),
		}
		require.NoError(t, store.CallRecords().Save(t.Context(), record))
	}

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Zero(t, result.LeadsQueued, "lead exhausted the no-answer budget")
}

func TestRunTick_SkipsLeadWithOpenQueueEntry(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, nil)
	lead := seedLead(t, store, "+15550000001", "camp-1")

	entry := &models.DialQueueEntry{
		CampaignID:  "camp-1",
		LeadID:      lead.ID,
		PhoneNumber: lead.PhoneNumber,
		Status:      models.DialQueueStatusCalling,
		ScheduledAt: tickTime.Add(-time.Minute),
	}
	require.NoError(t, store.DialQueue().Save(t.Context(), entry))

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Zero(t, result.LeadsQueued)
}

func TestRunTick_RepeatedTickDoesNotDuplicate(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, nil)
	seedLead(t, store, "+15550000001", "camp-1")

	evaluator := NewEvaluator(store, log.WithModule("test"))

	first, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, first.LeadsQueued)

	second, err := evaluator.RunTick(t.Context(), tickTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, second.LeadsQueued, "open entry blocks re-admission")
}

func TestRunTick_ConsultsDNCRegistry(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, nil)
	seedLead(t, store, "+15550000001", "camp-1")
	seedLead(t, store, "+15550000002", "camp-1")

	registry := dnc.NewStaticRegistry("+15550000002")
	evaluator := NewEvaluator(store, log.WithModule("test"), WithDNCRegistry(registry))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.LeadsQueued, "registered number never queued")

	pending, err := store.DialQueue().ListPending(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "+15550000001", pending[0].PhoneNumber)
}

func TestRunTick_RuleFailureDoesNotAbortOthers(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)

	// This rule points at a campaign that does not exist and must fail.
	missing := "camp-missing"
	broken := &models.AutomationRule{
		Owner:      "acct-1",
		CampaignID: &missing,
		RuleType:   "daily_dial",
		Priority:   9,
		Enabled:    true,
	}
	require.NoError(t, store.Rules().Save(t.Context(), broken))

	seedRule(t, store, func(rule *models.AutomationRule) {
		rule.Priority = 1
	})
	seedLead(t, store, "+15550000001", "camp-1")

	evaluator := NewEvaluator(store, log.WithModule("test"))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RulesProcessed)
	assert.Equal(t, 1, result.LeadsQueued, "healthy rule still ran")

	var failed *RuleResult
	for i := range result.RuleResults {
		if result.RuleResults[i].Error != "" {
			failed = &result.RuleResults[i]
		}
	}

	require.NotNil(t, failed)
	assert.True(t, strings.Contains(failed.Error, "campaign"), failed.Error)
	assert.Equal(t, broken.ID, failed.RuleID)
}

func TestRunTick_BatchCap(t *testing.T) {
	store := newStore(t)
	seedCampaign(t, store)
	seedRule(t, store, nil)

	phones := []string{"+15550000001", "+15550000002", "+15550000003"}
	for _, phone := range phones {
		seedLead(t, store, phone, "camp-1")
	}

	evaluator := NewEvaluator(store, log.WithModule("test"), WithCandidateBatch(2))

	result, err := evaluator.RunTick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 2, result.LeadsQueued)
}

var _ persistence.Persistence = (*file.Persistence)(nil)
