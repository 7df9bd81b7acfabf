package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outdialhq/outdial/pkg/automation"
	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/engine"
	"github.com/outdialhq/outdial/pkg/log"
	"github.com/outdialhq/outdial/pkg/models"
	"github.com/outdialhq/outdial/pkg/persistence/file"
	"github.com/outdialhq/outdial/pkg/web"
	"github.com/outdialhq/outdial/pkg/workflow"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := log.WithModule("test")

	evaluator := automation.NewEvaluator(store, logger)
	queue := dialqueue.NewService(store, logger)
	monitor := compliance.NewMonitor(store, nil, logger)
	stateMachine := workflow.NewStateMachine(store, queue, nil, logger)
	eng := engine.New(store, evaluator, queue, stateMachine, monitor, logger)

	handlers := web.NewAPIHandlers(store, eng, monitor, queue, stateMachine)

	app := fiber.New()
	app.Post("/tick", handlers.RunTick)
	app.Get("/campaigns/:id/compliance", handlers.ComplianceReport)
	app.Get("/queue/pending", handlers.PendingQueue)
	app.Post("/workflows/enroll", handlers.EnrollLead)
	app.Post("/workflows/progress/:id/pause", handlers.PauseProgress)
	app.Post("/workflows/progress/:id/resume", handlers.ResumeProgress)
	app.Delete("/leads/:id/workflows", handlers.RemoveLead)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func seedCampaign(t *testing.T, store *file.Persistence) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		ID:                 "camp-1",
		Owner:              "acct-1",
		Name:               "Test Campaign",
		Status:             models.CampaignStatusActive,
		CallingHoursStart:  "00:00",
		CallingHoursEnd:    "23:59",
		Timezone:           "UTC",
		MaxConcurrentCalls: 10,
	}
	require.NoError(t, store.Campaigns().Save(t.Context(), campaign))

	return campaign
}

func TestRunTick(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/tick", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary engine.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Zero(t, summary.RulesProcessed)
}

func TestComplianceReport(t *testing.T) {
	app, store := setupTestApp(t)
	seedCampaign(t, store)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/camp-1/compliance", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report compliance.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.Passed)
}

func TestComplianceReport_UnknownCampaign(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/campaigns/missing/compliance", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "campaign not found")
}

func TestPendingQueue(t *testing.T) {
	app, store := setupTestApp(t)

	entry := &models.DialQueueEntry{
		CampaignID:  "camp-1",
		LeadID:      "lead-1",
		PhoneNumber: "+15550000001",
		Priority:    5,
		Status:      models.DialQueueStatusPending,
		ScheduledAt: time.Now().UTC(),
	}
	require.NoError(t, store.DialQueue().Save(t.Context(), entry))

	req := httptest.NewRequest(http.MethodGet, "/queue/pending", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Entries []models.DialQueueEntry `json:"entries"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 1, payload.Count)
}

func TestPendingQueue_BadLimit(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/queue/pending?limit=banana", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnrollAndRemove(t *testing.T) {
	app, store := setupTestApp(t)

	lead := &models.Lead{Owner: "acct-1", PhoneNumber: "+15550000001", Status: models.LeadStatusNew}
	require.NoError(t, store.Leads().Save(t.Context(), lead))

	definition := &models.WorkflowDefinition{
		Owner: "acct-1",
		Name:  "Welcome Sequence",
		Steps: []*models.WorkflowStep{
			{StepNumber: 1, StepType: models.StepTypeSMS, Config: json.RawMessage(`{"message": "hi"}`)},
		},
	}
	require.NoError(t, store.Workflows().Save(t.Context(), definition))

	body, err := json.Marshal(map[string]string{
		"lead_id":     lead.ID,
		"workflow_id": definition.ID,
		"campaign_id": "camp-1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/workflows/enroll", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var progress models.LeadWorkflowProgress
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&progress))
	assert.Equal(t, models.ProgressStatusActive, progress.Status)

	// Enrolling again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/workflows/enroll", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	conflict, err := app.Test(req)
	require.NoError(t, err)
	defer conflict.Body.Close()
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)

	// Removal with a reason succeeds.
	removeBody, err := json.Marshal(map[string]string{"reason": "opted out"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodDelete, "/leads/"+lead.ID+"/workflows", bytes.NewReader(removeBody))
	req.Header.Set("Content-Type", "application/json")

	removed, err := app.Test(req)
	require.NoError(t, err)
	defer removed.Body.Close()
	assert.Equal(t, http.StatusOK, removed.StatusCode)
}

func TestRemoveLead_RequiresReason(t *testing.T) {
	app, _ := setupTestApp(t)

	body, err := json.Marshal(map[string]string{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/leads/lead-1/workflows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPauseResumeProgress(t *testing.T) {
	app, store := setupTestApp(t)

	progress := &models.LeadWorkflowProgress{
		LeadID:        "lead-1",
		WorkflowID:    "wf-1",
		CurrentStepID: "step-1",
		Status:        models.ProgressStatusActive,
		NextActionAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Progress().Save(t.Context(), progress))

	req := httptest.NewRequest(http.MethodPost, "/workflows/progress/"+progress.ID+"/pause", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/workflows/progress/"+progress.ID+"/resume", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Resume of an already-active row is an invalid transition.
	req = httptest.NewRequest(http.MethodPost, "/workflows/progress/"+progress.ID+"/resume", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
