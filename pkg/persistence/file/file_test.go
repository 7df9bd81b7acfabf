package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence"
)

func TestNewPersistence_TrimsScheme(t *testing.T) {
	p := NewPersistence("file:///tmp/outdial-test")
	assert.Equal(t, "/tmp/outdial-test", p.root)
}

func TestCampaignRepository_SaveAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())

	campaign := &models.Campaign{
		Owner:              "acct-1",
		Name:               "Spring Outreach",
		Status:             models.CampaignStatusActive,
		CallingHoursStart:  "09:00",
		CallingHoursEnd:    "17:00",
		Timezone:           "America/New_York",
		MaxConcurrentCalls: 10,
	}

	err := p.Campaigns().Save(t.Context(), campaign)
	require.NoError(t, err)
	require.NotEmpty(t, campaign.ID)
	assert.False(t, campaign.CreatedAt.IsZero())

	assert.FileExists(t, filepath.Join(p.root, "campaigns", campaign.ID+".json"))

	loaded, err := p.Campaigns().GetByID(t.Context(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Outreach", loaded.Name)
	assert.Equal(t, "America/New_York", loaded.Timezone)
}

func TestCampaignRepository_GetByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Campaigns().GetByID(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrCampaignNotFound)
}

func TestCampaignRepository_UpdateStatus_Pause(t *testing.T) {
	p := NewPersistence(t.TempDir())

	campaign := &models.Campaign{
		Owner: "acct-1", Name: "C", Status: models.CampaignStatusActive,
		CallingHoursStart: "09:00", CallingHoursEnd: "17:00", Timezone: "UTC",
		MaxConcurrentCalls: 5,
	}
	require.NoError(t, p.Campaigns().Save(t.Context(), campaign))

	pausedAt := time.Now().UTC()
	err := p.Campaigns().UpdateStatus(t.Context(), campaign.ID, models.CampaignStatusPaused, "compliance violation", pausedAt)
	require.NoError(t, err)

	loaded, err := p.Campaigns().GetByID(t.Context(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, loaded.Status)
	assert.Equal(t, "compliance violation", loaded.PauseReason)
	require.NotNil(t, loaded.PausedAt)
}

func TestDialQueueRepository_RejectsDuplicateOpenEntry(t *testing.T) {
	p := NewPersistence(t.TempDir())

	entry := &models.DialQueueEntry{
		CampaignID:  "camp-1",
		LeadID:      "lead-1",
		PhoneNumber: "+15550001111",
		Status:      models.DialQueueStatusPending,
		ScheduledAt: time.Now().UTC(),
	}
	require.NoError(t, p.DialQueue().Save(t.Context(), entry))

	duplicate := &models.DialQueueEntry{
		CampaignID:  "camp-1",
		LeadID:      "lead-1",
		PhoneNumber: "+15550001111",
		Status:      models.DialQueueStatusPending,
		ScheduledAt: time.Now().UTC(),
	}
	err := p.DialQueue().Save(t.Context(), duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicateQueueEntry)
}

func TestDialQueueRepository_AllowsNewEntryAfterClose(t *testing.T) {
	p := NewPersistence(t.TempDir())

	entry := &models.DialQueueEntry{
		CampaignID: "camp-1", LeadID: "lead-1", PhoneNumber: "+15550001111",
		Status: models.DialQueueStatusPending, ScheduledAt: time.Now().UTC(),
	}
	require.NoError(t, p.DialQueue().Save(t.Context(), entry))

	err := p.DialQueue().UpdateStatus(t.Context(), entry.ID, models.DialQueueStatusCompleted, time.Now().UTC())
	require.NoError(t, err)

	next := &models.DialQueueEntry{
		CampaignID: "camp-1", LeadID: "lead-1", PhoneNumber: "+15550001111",
		Status: models.DialQueueStatusPending, ScheduledAt: time.Now().UTC(),
	}
	assert.NoError(t, p.DialQueue().Save(t.Context(), next))
}

func TestDialQueueRepository_ListPending_Ordering(t *testing.T) {
	p := NewPersistence(t.TempDir())
	base := time.Now().UTC()

	entries := []*models.DialQueueEntry{
		{CampaignID: "c", LeadID: "l1", Priority: 1, Status: models.DialQueueStatusPending, ScheduledAt: base},
		{CampaignID: "c", LeadID: "l2", Priority: 9, Status: models.DialQueueStatusPending, ScheduledAt: base.Add(time.Minute)},
		{CampaignID: "c", LeadID: "l3", Priority: 9, Status: models.DialQueueStatusPending, ScheduledAt: base},
		{CampaignID: "c", LeadID: "l4", Priority: 5, Status: models.DialQueueStatusCompleted, ScheduledAt: base},
	}
	for _, entry := range entries {
		require.NoError(t, p.DialQueue().Save(t.Context(), entry))
	}

	pending, err := p.DialQueue().ListPending(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "l3", pending[0].LeadID, "highest priority, earliest schedule first")
	assert.Equal(t, "l2", pending[1].LeadID)
	assert.Equal(t, "l1", pending[2].LeadID)
}

func TestDialQueueRepository_MarkStuckFailed(t *testing.T) {
	p := NewPersistence(t.TempDir())
	now := time.Now().UTC()

	stuck := &models.DialQueueEntry{
		CampaignID: "c", LeadID: "l1", Status: models.DialQueueStatusCalling, ScheduledAt: now,
	}
	require.NoError(t, p.DialQueue().Save(t.Context(), stuck))

	// First sweep with a cutoff in the future reclaims the entry.
	reclaimed, err := p.DialQueue().MarkStuckFailed(t.Context(), now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	loaded, err := p.DialQueue().GetByID(t.Context(), stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DialQueueStatusFailed, loaded.Status)

	// Second sweep finds nothing.
	reclaimed, err = p.DialQueue().MarkStuckFailed(t.Context(), now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
}

func TestLeadRepository_FindCandidates(t *testing.T) {
	p := NewPersistence(t.TempDir())
	campaignID := "camp-1"

	leads := []*models.Lead{
		{Owner: "acct-1", PhoneNumber: "+15550000001", Status: models.LeadStatusNew},
		{Owner: "acct-1", PhoneNumber: "+15550000002", Status: models.LeadStatusConverted},
		{Owner: "acct-1", PhoneNumber: "+15550000003", Status: models.LeadStatusCallback, DoNotCall: true},
		{Owner: "acct-2", PhoneNumber: "+15550000004", Status: models.LeadStatusNew},
		{Owner: "acct-1", PhoneNumber: "+15550000005", Status: models.LeadStatusContacted, CampaignID: &campaignID},
	}
	for _, lead := range leads {
		require.NoError(t, p.Leads().Save(t.Context(), lead))
	}

	candidates, err := p.Leads().FindCandidates(t.Context(), persistence.CandidateFilter{
		Owner:    "acct-1",
		Statuses: models.ContactableStatuses,
		Limit:    50,
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 2, "converted, do-not-call, and foreign leads excluded")

	scoped, err := p.Leads().FindCandidates(t.Context(), persistence.CandidateFilter{
		Owner:      "acct-1",
		CampaignID: campaignID,
		Statuses:   models.ContactableStatuses,
		Limit:      50,
	})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "+15550000005", scoped[0].PhoneNumber)
}

func TestProgressRepository_ListDue(t *testing.T) {
	p := NewPersistence(t.TempDir())
	now := time.Now().UTC()

	rows := []*models.LeadWorkflowProgress{
		{LeadID: "l1", WorkflowID: "w", Status: models.ProgressStatusActive, NextActionAt: now.Add(-time.Minute)},
		{LeadID: "l2", WorkflowID: "w", Status: models.ProgressStatusActive, NextActionAt: now.Add(time.Hour)},
		{LeadID: "l3", WorkflowID: "w", Status: models.ProgressStatusPaused, NextActionAt: now.Add(-time.Hour)},
	}
	for _, row := range rows {
		require.NoError(t, p.Progress().Save(t.Context(), row))
	}

	due, err := p.Progress().ListDue(t.Context(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "future and paused rows are not due")
	assert.Equal(t, "l1", due[0].LeadID)
}

func TestProgressRepository_HasActive(t *testing.T) {
	p := NewPersistence(t.TempDir())

	row := &models.LeadWorkflowProgress{
		LeadID: "l1", WorkflowID: "w1", Status: models.ProgressStatusActive, NextActionAt: time.Now().UTC(),
	}
	require.NoError(t, p.Progress().Save(t.Context(), row))

	active, err := p.Progress().HasActive(t.Context(), "l1", "w1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = p.Progress().HasActive(t.Context(), "l1", "w2")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestCallRecordRepository_DayStats(t *testing.T) {
	p := NewPersistence(t.TempDir())
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	records := []*models.CallRecord{
		{CampaignID: "c", LeadID: "l1", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeAnswered},
		{CampaignID: "c", LeadID: "l2", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeAnswered},
		{CampaignID: "c", LeadID: "l3", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeAbandoned},
		{CampaignID: "c", LeadID: "l4", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeDNCViolation},
		{CampaignID: "other", LeadID: "l5", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeAnswered},
	}
	for _, record := range records {
		require.NoError(t, p.CallRecords().Save(t.Context(), record))
	}

	stats, err := p.CallRecords().DayStats(t.Context(), "c", dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Answered)
	assert.Equal(t, 1, stats.Abandoned)
	assert.Equal(t, 1, stats.DNCViolations)
}

func TestCallRecordRepository_LatestForLead(t *testing.T) {
	p := NewPersistence(t.TempDir())

	missing, err := p.CallRecords().LatestForLead(t.Context(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	older := &models.CallRecord{CampaignID: "c", LeadID: "l1", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeNoAnswer, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.CallRecord{CampaignID: "c", LeadID: "l1", Status: models.CallStatusCompleted, Outcome: models.CallOutcomeAnswered, CreatedAt: time.Now().UTC()}
	require.NoError(t, p.CallRecords().Save(t.Context(), older))
	require.NoError(t, p.CallRecords().Save(t.Context(), newer))

	latest, err := p.CallRecords().LatestForLead(t.Context(), "l1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.CallOutcomeAnswered, latest.Outcome)
}

func TestRuleRepository_ListEnabled_PriorityOrder(t *testing.T) {
	p := NewPersistence(t.TempDir())

	rules := []*models.AutomationRule{
		{Owner: "acct", RuleType: "daily_dial", Priority: 1, Enabled: true},
		{Owner: "acct", RuleType: "daily_dial", Priority: 9, Enabled: true},
		{Owner: "acct", RuleType: "daily_dial", Priority: 5, Enabled: false},
	}
	for _, rule := range rules {
		require.NoError(t, p.Rules().Save(t.Context(), rule))
	}

	enabled, err := p.Rules().ListEnabled(t.Context())
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, 9, enabled[0].Priority)
	assert.Equal(t, 1, enabled[1].Priority)
}
