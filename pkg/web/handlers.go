// Package web provides HTTP handlers for the on-demand tick and
// observability endpoints.
package web

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/engine"
	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/workflow"
)

const defaultPendingLimit = 50

type APIHandlers struct {
	persistence  persistence.Persistence
	engine       *engine.Engine
	monitor      *compliance.Monitor
	queue        *dialqueue.Service
	stateMachine *workflow.StateMachine
}

func NewAPIHandlers(
	persist persistence.Persistence,
	eng *engine.Engine,
	monitor *compliance.Monitor,
	queue *dialqueue.Service,
	stateMachine *workflow.StateMachine,
) *APIHandlers {
	return &APIHandlers{
		persistence:  persist,
		engine:       eng,
		monitor:      monitor,
		queue:        queue,
		stateMachine: stateMachine,
	}
}

// RunTick runs one engine tick and returns its summary.
func (h *APIHandlers) RunTick(c fiber.Ctx) error {
	summary, err := h.engine.Tick(c.Context(), time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(summary)
}

// ComplianceReport runs an on-demand compliance check without enforcement.
func (h *APIHandlers) ComplianceReport(c fiber.Ctx) error {
	report, err := h.monitor.Check(c.Context(), c.Params("id"), time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(report)
}

// PendingQueue lists the next pending queue entries in dispatch order.
func (h *APIHandlers) PendingQueue(c fiber.Ctx) error {
	limit := defaultPendingLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	entries, err := h.queue.NextPending(c.Context(), limit)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

type enrollRequest struct {
	LeadID     string `json:"lead_id"`
	WorkflowID string `json:"workflow_id"`
	CampaignID string `json:"campaign_id"`
}

// EnrollLead starts a lead on a workflow.
func (h *APIHandlers) EnrollLead(c fiber.Ctx) error {
	var req enrollRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if req.LeadID == "" || req.WorkflowID == "" {
		return badRequest(c, "lead_id and workflow_id are required")
	}

	progress, err := h.stateMachine.StartWorkflow(c.Context(), req.LeadID, req.WorkflowID, req.CampaignID, time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(progress)
}

type removeRequest struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Reason     string `json:"reason"`
}

// RemoveLead takes a lead out of one or all of its active workflows.
func (h *APIHandlers) RemoveLead(c fiber.Ctx) error {
	var req removeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	removed, err := h.stateMachine.RemoveFromWorkflow(c.Context(), c.Params("id"), req.WorkflowID, req.Reason, time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"removed": removed})
}

// PauseProgress suspends a single workflow enrollment.
func (h *APIHandlers) PauseProgress(c fiber.Ctx) error {
	err := h.stateMachine.PauseWorkflow(c.Context(), c.Params("id"), time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ResumeProgress reactivates a paused workflow enrollment.
func (h *APIHandlers) ResumeProgress(c fiber.Ctx) error {
	err := h.stateMachine.ResumeWorkflow(c.Context(), c.Params("id"), time.Now().UTC())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck reports persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
