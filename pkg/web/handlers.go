// Package web provides HTTP handlers and REST API endpoints for approval workflows.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/authority"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/services"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/triggers"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIHandlers struct {
	definitions *services.Definitions
	templates   *templates.Registry
	engine      *engine.Engine
	triggers    *triggers.Integrator
	authority   *authority.Checker
	validator   *validator.Validate
	gatherer    prometheus.Gatherer
}

func NewAPIHandlers(
	definitions *services.Definitions,
	templateRegistry *templates.Registry,
	approvalEngine *engine.Engine,
	integrator *triggers.Integrator,
	checker *authority.Checker,
	validator *validator.Validate,
	gatherer prometheus.Gatherer,
) *APIHandlers {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &APIHandlers{
		definitions: definitions,
		templates:   templateRegistry,
		engine:      approvalEngine,
		triggers:    integrator,
		authority:   checker,
		validator:   validator,
		gatherer:    gatherer,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitions.HealthCheck(c.Context())

	templateCheck, tmplOk := "templates loaded", true

	list, err := h.templates.List()
	if err != nil || len(list) == 0 {
		templateCheck, tmplOk = "no templates registered", false
	}

	status := "unhealthy"
	message := "Approvals API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && tmplOk {
		status = "healthy"
		message = "Approvals API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"templates":  templateCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Metrics serves the prometheus registry the recovery counters are registered with.
func (h *APIHandlers) Metrics() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// bind decodes and validates a JSON body into req. A non-nil error means the problem
// response was already written.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	var status *models.DefinitionStatus

	if raw := c.Query("status"); raw != "" {
		s := models.DefinitionStatus(raw)
		status = &s
	}

	definitions, err := h.definitions.List(c.Context(), status)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(fiber.Map{
		"definitions": definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	definition, err := h.definitions.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	var req CreateDefinitionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	created, err := h.definitions.Create(c.Context(), &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Triggers:    req.Triggers,
		Metadata:    req.Metadata,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	var req UpdateDefinitionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	updated, err := h.definitions.Update(c.Context(), c.Params("id"), &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Triggers:    req.Triggers,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(updated)
}

// ValidateDefinition is a dry run: an invalid definition is a 200 with valid=false.
func (h *APIHandlers) ValidateDefinition(c fiber.Ctx) error {
	var req ValidateDefinitionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.definitions.Validate(c.Context(), req.Definition, req.ValidateApprovers)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ActivateDefinition(c fiber.Ctx) error {
	return h.lifecycle(c, h.definitions.Activate)
}

func (h *APIHandlers) SuspendDefinition(c fiber.Ctx) error {
	return h.lifecycle(c, h.definitions.Suspend)
}

func (h *APIHandlers) ArchiveDefinition(c fiber.Ctx) error {
	return h.lifecycle(c, h.definitions.Archive)
}

func (h *APIHandlers) lifecycle(
	c fiber.Ctx,
	change func(ctx context.Context, id string) (*models.WorkflowDefinition, error),
) error {
	definition, err := change(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateDefinitionVersion(c fiber.Ctx) error {
	var req NewVersionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	draft, err := h.definitions.NewVersion(c.Context(), c.Params("id"), req.CreatedBy)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	list, err := h.templates.List()
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"templates": list})
}

// InstantiateTemplate stores the customized template as a draft definition.
func (h *APIHandlers) InstantiateTemplate(c fiber.Ctx) error {
	var req InstantiateTemplateRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	definition, err := h.definitions.FromTemplate(c.Context(), templates.Type(c.Params("type")), templates.InstantiateRequest{
		Name:           req.Name,
		Customizations: req.Customizations,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(definition)
}

func (h *APIHandlers) ValidateTemplateCustomizations(c fiber.Ctx) error {
	var req InstantiateTemplateRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.templates.ValidateCustomizations(templates.Type(c.Params("type")), templates.InstantiateRequest{
		Name:           req.Name,
		Customizations: req.Customizations,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateInstance(c fiber.Ctx) error {
	var req engine.CreateInstanceRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	instance, err := h.engine.CreateInstance(c.Context(), req)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	snapshot, err := h.engine.GetStatus(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) SuspendInstance(c fiber.Ctx) error {
	var req ControlRequest
	if ok, err := h.bindOptional(c, &req); !ok {
		return err
	}

	instance, err := h.engine.Suspend(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) ResumeInstance(c fiber.Ctx) error {
	instance, err := h.engine.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	var req ControlRequest
	if ok, err := h.bindOptional(c, &req); !ok {
		return err
	}

	instance, err := h.engine.Cancel(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(instance)
}

// bindOptional is bind for endpoints whose body may be empty.
func (h *APIHandlers) bindOptional(c fiber.Ctx, req any) (bool, error) {
	if len(c.Body()) == 0 {
		return true, nil
	}

	return h.bind(c, req)
}

func (h *APIHandlers) SubmitDecision(c fiber.Ctx) error {
	var req DecisionRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	result, err := h.engine.SubmitDecision(c.Context(), engine.SubmitDecisionRequest{
		ApprovalID: c.Params("id"),
		Decision:   req.Decision,
		Actor:      req.Actor,
		Comments:   req.Comments,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetPendingApprovals(c fiber.Ctx) error {
	userID := c.Params("id")

	approvals, err := h.engine.GetPendingApprovalsFor(c.Context(), userID)
	if err != nil {
		return handleError(c, err)
	}

	if approvals == nil {
		approvals = []*models.Approval{}
	}

	return c.JSON(PendingApprovalsResponse{
		UserID:    userID,
		Approvals: approvals,
		Count:     len(approvals),
	})
}

func (h *APIHandlers) CheckAuthority(c fiber.Ctx) error {
	var req AuthorityCheckRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	authorized, err := h.authority.CheckApprovalAuthority(c.Context(), req.UserID, req.ChangeValue, req.ChangeType, req.Role)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(AuthorityCheckResponse{
		UserID:     req.UserID,
		Role:       req.Role,
		Authorized: authorized,
		Value:      req.ChangeValue,
	})
}

func (h *APIHandlers) DetermineWorkflowType(c fiber.Ctx) error {
	var req ChangeCharacteristicsRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	return c.JSON(fiber.Map{
		"workflow_type": h.authority.DetermineWorkflowType(req.characteristics()),
	})
}

func (h *APIHandlers) DetermineApprovalPath(c fiber.Ctx) error {
	var req ApprovalPathRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	change := req.characteristics()

	workflowType := req.WorkflowType
	if workflowType == "" {
		workflowType = h.authority.DetermineWorkflowType(change)
	}

	return c.JSON(ApprovalPathResponse{
		WorkflowType: workflowType,
		Path:         h.authority.DetermineApprovalPath(change, workflowType),
	})
}

func (h *APIHandlers) BudgetChange(c fiber.Ctx) error {
	var event events.BudgetChanged
	if ok, err := bindEvent(c, events.BudgetChangedEvent, &event, &event.BaseEvent); !ok {
		return err
	}

	return respondOutcome(c)(h.triggers.OnBudgetChange(c.Context(), event))
}

func (h *APIHandlers) MilestoneUpdate(c fiber.Ctx) error {
	var event events.MilestoneUpdated
	if ok, err := bindEvent(c, events.MilestoneUpdatedEvent, &event, &event.BaseEvent); !ok {
		return err
	}

	return respondOutcome(c)(h.triggers.OnMilestoneUpdate(c.Context(), event))
}

func (h *APIHandlers) ResourceAllocation(c fiber.Ctx) error {
	var event events.ResourceAllocated
	if ok, err := bindEvent(c, events.ResourceAllocatedEvent, &event, &event.BaseEvent); !ok {
		return err
	}

	return respondOutcome(c)(h.triggers.OnResourceAllocation(c.Context(), event))
}

func (h *APIHandlers) RiskEvent(c fiber.Ctx) error {
	var event events.RiskEscalated
	if ok, err := bindEvent(c, events.RiskEscalatedEvent, &event, &event.BaseEvent); !ok {
		return err
	}

	return respondOutcome(c)(h.triggers.OnRiskEvent(c.Context(), event))
}

func (h *APIHandlers) ChangeRequest(c fiber.Ctx) error {
	var req triggers.ChangeRequest
	if ok, err := bindEvent(c, "", &req, &req.BaseEvent); !ok {
		return err
	}

	return respondOutcome(c)(h.triggers.OnChangeRequest(c.Context(), req))
}

// respondOutcome answers 201 when an instance was created and 200 otherwise.
func respondOutcome(c fiber.Ctx) func(*triggers.Outcome, error) error {
	return func(outcome *triggers.Outcome, err error) error {
		if err != nil {
			return handleError(c, err)
		}

		if outcome.Fired {
			return c.Status(fiber.StatusCreated).JSON(outcome)
		}

		return c.JSON(outcome)
	}
}
