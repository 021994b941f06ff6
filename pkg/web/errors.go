package web

import (
	"errors"
	"strings"

	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/services"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/triggers"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
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

func problem(c fiber.Ctx, status int, problemType string, err error) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail(err))

	return c.Status(status).JSON(p)
}

// detail prefers the individual validation failures over the wrapped message.
func detail(err error) string {
	if details := services.Details(err); len(details) > 0 {
		return strings.Join(details, "; ")
	}

	return err.Error()
}

// handleError maps service, engine and trigger errors to problem documents.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "definition_not_found", "workflow definition not found")

	case persistence.IsInstanceNotFound(err):
		return notFound(c, "instance_not_found", "workflow instance not found")

	case persistence.IsApprovalNotFound(err):
		return notFound(c, "approval_not_found", "approval not found")

	case errors.Is(err, templates.ErrTemplateNotFound):
		return notFound(c, "template_not_found", err.Error())

	case services.IsValidationError(err),
		engine.IsValidationError(err),
		errors.Is(err, triggers.ErrInvalidEvent):
		return problem(c, fiber.StatusBadRequest, "validation_error", err)

	case engine.IsPermissionError(err):
		return problem(c, fiber.StatusForbidden, "permission_denied", err)

	case services.IsConflictError(err), engine.IsStateError(err):
		return problem(c, fiber.StatusConflict, "conflict", err)

	default:
		return internalError(c, err)
	}
}
