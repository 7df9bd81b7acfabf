package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/outdialhq/outdial/pkg/persistence"
	"github.com/outdialhq/outdial/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps domain errors onto problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsCampaignNotFound(err):
		return notFound(c, "campaign not found")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case errors.Is(err, persistence.ErrLeadNotFound):
		return notFound(c, "lead not found")

	case errors.Is(err, persistence.ErrProgressNotFound):
		return notFound(c, "workflow progress not found")

	case errors.Is(err, workflow.ErrDuplicateEnrollment):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, workflow.ErrEmptyWorkflow),
		errors.Is(err, workflow.ErrReasonRequired),
		errors.Is(err, workflow.ErrInvalidTransition):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
