package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"go.opentelemetry.io/otel/attribute"
)

// Suspend puts an in-progress instance on hold. Decisions are refused until Resume.
func (e *Engine) Suspend(ctx context.Context, instanceID, reason string) (*models.WorkflowInstance, error) {
	return e.control(ctx, "suspend", instanceID, func(t *transition) error {
		if t.instance.Status != models.InstanceStatusInProgress {
			return illegal("suspend", t.instance)
		}

		t.instance.Status = models.InstanceStatusSuspended
		t.instance.SuspendedReason = reason

		return nil
	})
}

// Resume returns a suspended instance to in_progress and clears its recovery attempt counters.
func (e *Engine) Resume(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	instance, err := e.control(ctx, "resume", instanceID, func(t *transition) error {
		if t.instance.Status != models.InstanceStatusSuspended {
			return illegal("resume", t.instance)
		}

		t.instance.Status = models.InstanceStatusInProgress
		t.instance.SuspendedReason = ""

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recovery.ResetInstance(instanceID)

	return instance, nil
}

// Cancel closes a non-terminal instance. Pending approvals stay pending and are no longer
// actionable.
func (e *Engine) Cancel(ctx context.Context, instanceID, reason string) (*models.WorkflowInstance, error) {
	instance, err := e.control(ctx, "cancel", instanceID, func(t *transition) error {
		if t.instance.Status.Terminal() {
			return illegal("cancel", t.instance)
		}

		t.instance.Status = models.InstanceStatusCancelled
		t.instance.SuspendedReason = ""
		now := t.now
		t.instance.CompletedAt = &now
		t.completed = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Cancelled workflow instance", "instance_id", instanceID, "reason", reason)

	return instance, nil
}

func (e *Engine) control(ctx context.Context, op, instanceID string, apply func(*transition) error) (*models.WorkflowInstance, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine."+op,
		attribute.String(otelhelper.InstanceIDKey, instanceID))
	defer span.End()

	instance, err := e.applyControl(ctx, instanceID, apply)
	if err != nil {
		return nil, e.fail(ctx, span, op, instanceID, err)
	}

	e.logger.InfoContext(ctx, "Changed instance status",
		"operation", op,
		"instance_id", instanceID,
		"status", instance.Status)

	return instance, nil
}

func (e *Engine) applyControl(ctx context.Context, instanceID string, apply func(*transition) error) (*models.WorkflowInstance, error) {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	instance, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	t := newTransition(nil, instance, nil, e.now())

	err = apply(t)
	if err != nil {
		return nil, err
	}

	err = e.save(ctx, t)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, t)

	return instance, nil
}

// SuspendForRecovery implements recovery.InstanceController. Terminal instances are left
// untouched.
func (e *Engine) SuspendForRecovery(ctx context.Context, instanceID, reason string, rollback bool) error {
	return e.remediate(ctx, instanceID, func(instance *models.WorkflowInstance) {
		instance.Status = models.InstanceStatusSuspended
		instance.SuspendedReason = reason
		instance.RequiresRollback = instance.RequiresRollback || rollback
	})
}

// Escalate implements recovery.InstanceController. It flags the instance, marks the timed-out
// step (details "step_order", or every pending step) and notifies the step's approvers.
// The instance keeps running.
func (e *Engine) Escalate(ctx context.Context, instanceID string, details map[string]any) error {
	var pendingSteps []int

	err := e.remediate(ctx, instanceID, func(instance *models.WorkflowInstance) {
		instance.RequiresEscalation = true

		order, hasOrder := details["step_order"].(int)

		for _, state := range instance.Steps {
			if state.Outcome != models.StepOutcomePending || (hasOrder && state.Order != order) {
				continue
			}

			state.Escalated = true
			pendingSteps = append(pendingSteps, state.Order)
		}
	})
	if err != nil || len(pendingSteps) == 0 {
		return err
	}

	approvals, err := e.persistence.ApprovalRepository().ListByInstance(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to list approvals for escalation: %w", err)
	}

	for _, approval := range approvals {
		if approval.Decision != models.DecisionPending || !slices.Contains(pendingSteps, approval.StepOrder) {
			continue
		}

		e.notifier.Notify(ctx, notify.Intent{
			Type:      notify.TypeApprovalEscalated,
			Recipient: recipientOf(approval),
			Payload: map[string]any{
				"instance_id": instanceID,
				"approval_id": approval.ID,
				"step_order":  approval.StepOrder,
			},
		})
	}

	return nil
}

// remediate applies a recovery effect under the instance lock. It talks to the store
// directly: remediation runs inside HandleError and must not report back into it.
func (e *Engine) remediate(ctx context.Context, instanceID string, apply func(*models.WorkflowInstance)) error {
	unlock := e.locks.lock(instanceID)
	defer unlock()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance for remediation: %w", err)
	}

	if instance.Status.Terminal() {
		return nil
	}

	apply(instance)

	err = e.persistence.InstanceRepository().Save(ctx, instance)
	if err != nil {
		return fmt.Errorf("failed to save remediated instance: %w", err)
	}

	e.logger.InfoContext(ctx, "Applied recovery remediation",
		"instance_id", instanceID,
		"status", instance.Status,
		"requires_rollback", instance.RequiresRollback,
		"requires_escalation", instance.RequiresEscalation)

	return nil
}

func illegal(op string, instance *models.WorkflowInstance) error {
	return recovery.Wrap(recovery.CategoryStateTransition, op,
		fmt.Errorf("%w: cannot %s instance %s in status %s", ErrIllegalTransition, op, instance.ID, instance.Status))
}

var _ recovery.InstanceController = (*Engine)(nil)
