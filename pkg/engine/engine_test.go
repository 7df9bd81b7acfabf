package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outdialhq/outdial/pkg/automation"
	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/log"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence/file"
	"github.com/outdialhq/outdial/pkg/workflow"
)

// Tuesday 10:30 UTC.
var tickTime = time.Date(2025, 3, 11, 10, 30, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := log.WithModule("test")

	evaluator := automation.NewEvaluator(store, logger)
	queue := dialqueue.NewService(store, logger)
	monitor := compliance.NewMonitor(store, nil, logger)
	stateMachine := workflow.NewStateMachine(store, queue, nil, logger)

	return New(store, evaluator, queue, stateMachine, monitor, logger), store
}

func seedCampaign(t *testing.T, store *file.Persistence, start, end string) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		ID:                 "camp-1",
		Owner:              "acct-1",
		Name:               "Test Campaign",
		Status:             models.CampaignStatusActive,
		CallingHoursStart:  start,
		CallingHoursEnd:    end,
		Timezone:           "UTC",
		MaxConcurrentCalls: 10,
	}
	require.NoError(t, store.Campaigns().Save(t.Context(), campaign))

	return campaign
}

func TestTick_AllPhases(t *testing.T) {
	eng, store := newEngine(t)
	seedCampaign(t, store, "09:00", "17:00")

	campaignID := "camp-1"
	rule := &models.AutomationRule{
		Owner:      "acct-1",
		CampaignID: &campaignID,
		RuleType:   "daily_dial",
		Priority:   5,
		Enabled:    true,
	}
	require.NoError(t, store.Rules().Save(t.Context(), rule))

	lead := &models.Lead{
		Owner:       "acct-1",
		PhoneNumber: "+15550000001",
		Status:      models.LeadStatusNew,
		CampaignID:  &campaignID,
	}
	require.NoError(t, store.Leads().Save(t.Context(), lead))

	definition := &models.WorkflowDefinition{
		Owner: "acct-1",
		Name:  "Welcome Sequence",
		Steps: []*models.WorkflowStep{
			{StepNumber: 1, StepType: models.StepTypeSMS, Config: json.RawMessage(`{"message": "hi"}`)},
		},
	}
	require.NoError(t, store.Workflows().Save(t.Context(), definition))

	walkLead := &models.Lead{
		Owner:       "acct-1",
		PhoneNumber: "+15550000002",
		Status:      models.LeadStatusContacted,
	}
	require.NoError(t, store.Leads().Save(t.Context(), walkLead))

	progress := &models.LeadWorkflowProgress{
		LeadID:        walkLead.ID,
		WorkflowID:    definition.ID,
		CampaignID:    campaignID,
		CurrentStepID: definition.Steps[0].ID,
		Status:        models.ProgressStatusActive,
		NextActionAt:  tickTime.Add(-time.Minute),
	}
	require.NoError(t, store.Progress().Save(t.Context(), progress))

	summary, err := eng.Tick(t.Context(), tickTime)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.RulesProcessed)
	assert.Equal(t, 1, summary.LeadsQueued, "only the campaign's lead is admitted by the scoped rule")
	assert.Equal(t, 1, summary.WorkflowStepsExecuted)
	assert.Equal(t, 1, summary.WorkflowsCompleted)
	assert.Equal(t, 1, summary.CampaignsChecked)
	assert.Zero(t, summary.CampaignsPaused)
	assert.Empty(t, summary.PhaseErrors)
}

func TestTick_PausesViolatingCampaign(t *testing.T) {
	eng, store := newEngine(t)
	// Calling hours that exclude the tick time.
	seedCampaign(t, store, "12:00", "17:00")

	summary, err := eng.Tick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CampaignsChecked)
	assert.Equal(t, 1, summary.CampaignsPaused)

	campaign, err := store.Campaigns().GetByID(t.Context(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, campaign.Status)
}

func TestTick_PausedCampaignNotRechecked(t *testing.T) {
	eng, store := newEngine(t)
	seedCampaign(t, store, "12:00", "17:00")

	_, err := eng.Tick(t.Context(), tickTime)
	require.NoError(t, err)

	summary, err := eng.Tick(t.Context(), tickTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, summary.CampaignsChecked, "paused campaigns sit out until restarted")
}

func TestTick_CleansStuckCalls(t *testing.T) {
	eng, store := newEngine(t)
	seedCampaign(t, store, "09:00", "17:00")

	entry := &models.DialQueueEntry{
		CampaignID: "camp-1", LeadID: "lead-1", Status: models.DialQueueStatusCalling, ScheduledAt: tickTime.Add(-time.Hour),
	}
	require.NoError(t, store.DialQueue().Save(t.Context(), entry))
	require.NoError(t, store.DialQueue().UpdateStatus(t.Context(), entry.ID, models.DialQueueStatusCalling, tickTime.Add(-time.Hour)))

	summary, err := eng.Tick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StuckCleaned)
}

func TestTick_EmptyStore(t *testing.T) {
	eng, _ := newEngine(t)

	summary, err := eng.Tick(t.Context(), tickTime)
	require.NoError(t, err)
	assert.Zero(t, summary.RulesProcessed)
	assert.Zero(t, summary.CampaignsChecked)
	assert.Empty(t, summary.PhaseErrors)
}
