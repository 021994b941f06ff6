package engine

import (
	"context"
	"fmt"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"go.opentelemetry.io/otel/attribute"
)

// CreateInstanceRequest starts a definition against one business entity.
type CreateInstanceRequest struct {
	DefinitionID string                 `json:"definition_id" validate:"required"`
	Entity       models.Entity          `json:"entity"`
	Context      models.InstanceContext `json:"context"`
	InitiatedBy  string                 `json:"initiated_by"  validate:"required"`
}

// CreateInstance materializes the first activation group and returns the saved instance.
// Groups that resolve without decisions (notification, condition, skipped and
// auto-approved steps) are passed through immediately.
func (e *Engine) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.create_instance",
		attribute.String(otelhelper.DefinitionIDKey, req.DefinitionID),
		attribute.String(otelhelper.EntityTypeKey, req.Entity.Type),
		attribute.String(otelhelper.EntityIDKey, req.Entity.ID))
	defer span.End()

	instance, t, err := e.createInstance(ctx, req)
	if err != nil {
		instanceID := ""
		if instance != nil {
			instanceID = instance.ID
		}

		return nil, e.fail(ctx, span, "create_instance", instanceID, err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.InstanceIDKey, instance.ID),
		attribute.String(otelhelper.StatusKey, string(instance.Status)))

	e.logger.InfoContext(ctx, "Created workflow instance",
		"instance_id", instance.ID,
		"definition_id", instance.DefinitionID,
		"entity_type", instance.EntityType,
		"entity_id", instance.EntityID,
		"status", instance.Status,
		"approvals", len(t.approvals))

	return instance, nil
}

func (e *Engine) createInstance(ctx context.Context, req CreateInstanceRequest) (*models.WorkflowInstance, *transition, error) {
	err := e.validate.Struct(req)
	if err != nil {
		return nil, nil, recovery.Wrap(recovery.CategoryValidation, "create_instance",
			fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	definition, err := e.loadDefinition(ctx, "", req.DefinitionID)
	if err != nil {
		return nil, nil, err
	}

	if definition.Status != models.DefinitionStatusActive {
		return nil, nil, recovery.Wrap(recovery.CategoryValidation, "create_instance",
			fmt.Errorf("%w: %s is %s", ErrDefinitionNotActive, definition.ID, definition.Status))
	}

	if req.Context.Kind == "" {
		req.Context.Kind = models.ContextKindOpaque
	}

	now := e.now()
	instance := &models.WorkflowInstance{
		ID:                newID(),
		DefinitionID:      definition.ID,
		DefinitionVersion: definition.Version,
		EntityType:        req.Entity.Type,
		EntityID:          req.Entity.ID,
		Status:            models.InstanceStatusPending,
		Context:           req.Context,
		InitiatedBy:       req.InitiatedBy,
		StartedAt:         now,
		UpdatedAt:         now,
	}

	for _, step := range definition.SortedSteps() {
		instance.Steps = append(instance.Steps, &models.StepState{
			Order:   step.Order,
			Outcome: models.StepOutcomeInactive,
		})
	}

	unlock := e.locks.lock(instance.ID)
	defer unlock()

	t := newTransition(definition, instance, nil, now)

	err = t.advance(0)
	if err != nil {
		return instance, nil, err
	}

	err = e.save(ctx, t)
	if err != nil {
		return instance, nil, err
	}

	e.emit(ctx, t)

	return instance, t, nil
}
