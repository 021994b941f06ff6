package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitDecisionRequest records one actor's decision on one approval slot.
type SubmitDecisionRequest struct {
	ApprovalID string          `json:"approval_id" validate:"required"`
	Decision   models.Decision `json:"decision"    validate:"required,oneof=approved rejected"`
	Actor      string          `json:"actor"       validate:"required"`
	Comments   string          `json:"comments,omitempty"`
}

// DecisionResult is the instance state after a decision was applied. Decision differs from
// the submitted one when a rejected dependency forced a rejection.
type DecisionResult struct {
	InstanceID       string                `json:"instance_id"`
	ApprovalID       string                `json:"approval_id"`
	Decision         models.Decision       `json:"decision"`
	Status           models.InstanceStatus `json:"status"`
	CurrentStepOrder int                   `json:"current_step_order"`
	IsComplete       bool                  `json:"is_complete"`
}

// SubmitDecision applies a decision and recomputes step and instance status while holding
// the instance lock.
func (e *Engine) SubmitDecision(ctx context.Context, req SubmitDecisionRequest) (*DecisionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.submit_decision",
		attribute.String(otelhelper.ApprovalIDKey, req.ApprovalID),
		attribute.String(otelhelper.ActorKey, req.Actor),
		attribute.String(otelhelper.DecisionKey, string(req.Decision)))
	defer span.End()

	result, instanceID, err := e.submitDecision(ctx, req)
	if err != nil {
		return nil, e.fail(ctx, span, "submit_decision", instanceID, err)
	}

	span.SetAttributes(
		attribute.String(otelhelper.InstanceIDKey, result.InstanceID),
		attribute.String(otelhelper.StatusKey, string(result.Status)))

	e.logger.InfoContext(ctx, "Applied approval decision",
		"instance_id", result.InstanceID,
		"approval_id", result.ApprovalID,
		"actor", req.Actor,
		"decision", result.Decision,
		"status", result.Status)

	return result, nil
}

func (e *Engine) submitDecision(ctx context.Context, req SubmitDecisionRequest) (*DecisionResult, string, error) {
	err := e.validate.Struct(req)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && fieldErrors[0].Field() == "Decision" {
			err = fmt.Errorf("%w: %w", ErrInvalidDecision, err)
		} else {
			err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}

		return nil, "", recovery.Wrap(recovery.CategoryValidation, "submit_decision", err)
	}

	approval, err := fetch(ctx, e, requestScope("load_approval", req.ApprovalID), "load_approval", func(ctx context.Context) (*models.Approval, error) {
		return e.persistence.ApprovalRepository().GetByID(ctx, req.ApprovalID)
	})
	if err != nil {
		return nil, "", err
	}

	instanceID := approval.InstanceID

	unlock := e.locks.lock(instanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, instanceID, err
	}

	err = checkOpen(instance)
	if err != nil {
		return nil, instanceID, err
	}

	approvals, err := e.loadApprovals(ctx, instanceID)
	if err != nil {
		return nil, instanceID, err
	}

	// Reload under the lock; a concurrent submission may have decided the slot.
	approval = findApproval(approvals, req.ApprovalID)
	if approval == nil {
		return nil, instanceID, recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: approval %s is not part of instance %s", ErrIllegalTransition, req.ApprovalID, instanceID))
	}

	if approval.Decision != models.DecisionPending {
		return nil, instanceID, recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: %s is %s", ErrAlreadyDecided, approval.ID, approval.Decision))
	}

	state := instance.StepState(approval.StepOrder)
	if state == nil || state.Outcome != models.StepOutcomePending {
		return nil, instanceID, recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: step %d", ErrStepNotActive, approval.StepOrder))
	}

	definition, err := e.loadDefinition(ctx, instanceID, instance.DefinitionID)
	if err != nil {
		return nil, instanceID, err
	}

	step := definition.StepByOrder(approval.StepOrder)
	if step == nil {
		return nil, instanceID, recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: definition %s has no step %d", ErrIllegalTransition, definition.ID, approval.StepOrder))
	}

	err = e.authorize(ctx, instance, approval, req)
	if err != nil {
		return nil, instanceID, err
	}

	t := newTransition(definition, instance, approvals, e.now())

	decision, comments, err := gate(t, approval, req)
	if err != nil {
		return nil, instanceID, err
	}

	decidedAt := t.now
	approval.Decision = decision
	approval.DecidedBy = req.Actor
	approval.DecisionAt = &decidedAt
	approval.Comments = comments
	t.touch(approval)

	switch stepOutcome(step, t.stepApprovals(step.Order)) {
	case models.StepOutcomeFailed:
		t.resolve(state, models.StepOutcomeFailed)
		t.complete(models.InstanceStatusRejected)
	case models.StepOutcomeSatisfied:
		t.resolve(state, models.StepOutcomeSatisfied)

		group := definition.GroupOf(step.Order)
		if t.groupResolved(definition.Groups()[group]) {
			err = t.advance(group + 1)
			if err != nil {
				return nil, instanceID, err
			}
		}
	case models.StepOutcomePending, models.StepOutcomeInactive, models.StepOutcomeSkipped:
	}

	err = e.save(ctx, t)
	if err != nil {
		return nil, instanceID, err
	}

	e.emit(ctx, t)

	return &DecisionResult{
		InstanceID:       instance.ID,
		ApprovalID:       approval.ID,
		Decision:         decision,
		Status:           instance.Status,
		CurrentStepOrder: instance.CurrentStepOrder,
		IsComplete:       instance.Status.Terminal(),
	}, instanceID, nil
}

// authorize checks the actor is the assigned approver or holds the assigned role. Role-based
// approvals of a change with a monetary value also need approval authority for that value.
func (e *Engine) authorize(ctx context.Context, instance *models.WorkflowInstance, approval *models.Approval, req SubmitDecisionRequest) error {
	if !approval.RoleBased() {
		if approval.ApproverID != req.Actor {
			return recovery.Wrap(recovery.CategoryPermission, "authorize_decision",
				fmt.Errorf("%w: %s is assigned to %s", ErrNotAssignedApprover, approval.ID, approval.ApproverID))
		}

		return nil
	}

	holds, err := rbac.HasRole(ctx, e.directory, req.Actor, approval.ApproverRole)
	if err != nil {
		return recovery.Wrap(recovery.CategoryIntegration, "authorize_decision", err)
	}

	if !holds {
		return recovery.Wrap(recovery.CategoryPermission, "authorize_decision",
			fmt.Errorf("%w: %s does not hold role %s", ErrNotAssignedApprover, req.Actor, approval.ApproverRole))
	}

	if req.Decision != models.DecisionApproved {
		return nil
	}

	value, changeType, ok := instance.Context.ChangeValue()
	if !ok {
		return nil
	}

	allowed, err := e.authority.CheckApprovalAuthority(ctx, req.Actor, value, changeType, approval.ApproverRole)
	if err != nil {
		return recovery.Wrap(recovery.CategoryIntegration, "authorize_decision", err)
	}

	if !allowed {
		return recovery.Wrap(recovery.CategoryPermission, "authorize_decision",
			fmt.Errorf("%w: %s under %s for %.2f %s", ErrInsufficientAuthority, req.Actor, approval.ApproverRole, value, changeType))
	}

	return nil
}

// gate applies the dependency rule: a resolved dependency lets the decision through, a
// dependency holding a rejection forces a rejection, anything else is refused.
func gate(t *transition, approval *models.Approval, req SubmitDecisionRequest) (models.Decision, string, error) {
	if approval.DependsOnStep == nil {
		return req.Decision, req.Comments, nil
	}

	dependency := *approval.DependsOnStep

	state := t.instance.StepState(dependency)
	if state != nil && state.Outcome.Resolved() {
		return req.Decision, req.Comments, nil
	}

	for _, other := range t.stepApprovals(dependency) {
		if other.IsRequired && other.Decision == models.DecisionRejected {
			comments := fmt.Sprintf("forced rejection: dependency step %d was rejected", dependency)
			if req.Comments != "" {
				comments = req.Comments + "; " + comments
			}

			return models.DecisionRejected, comments, nil
		}
	}

	return "", "", recovery.Wrap(recovery.CategoryValidation, "submit_decision",
		fmt.Errorf("%w: step %d", ErrDependencyPending, dependency))
}

func checkOpen(instance *models.WorkflowInstance) error {
	switch {
	case instance.Status == models.InstanceStatusSuspended:
		return recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: %s", ErrInstanceSuspended, instance.ID))
	case instance.Status.Terminal():
		return recovery.Wrap(recovery.CategoryStateTransition, "submit_decision",
			fmt.Errorf("%w: %s is %s", ErrInstanceClosed, instance.ID, instance.Status))
	default:
		return nil
	}
}

func findApproval(approvals []*models.Approval, id string) *models.Approval {
	for _, approval := range approvals {
		if approval.ID == id {
			return approval
		}
	}

	return nil
}
