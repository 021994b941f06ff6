package engine

import (
	"context"
	"errors"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"go.opentelemetry.io/otel/attribute"
)

// Snapshot is a read-only view of an instance and its approval slots.
type Snapshot struct {
	Instance  *models.WorkflowInstance `json:"instance"`
	Approvals []*models.Approval       `json:"approvals"`
}

// GetStatus reads an instance without taking its lock.
func (e *Engine) GetStatus(ctx context.Context, instanceID string) (*Snapshot, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.get_status",
		attribute.String(otelhelper.InstanceIDKey, instanceID))
	defer span.End()

	instance, err := e.loadInstance(ctx, instanceID)
	if err != nil {
		return nil, e.fail(ctx, span, "get_status", instanceID, err)
	}

	approvals, err := e.loadApprovals(ctx, instanceID)
	if err != nil {
		return nil, e.fail(ctx, span, "get_status", instanceID, err)
	}

	return &Snapshot{Instance: instance, Approvals: approvals}, nil
}

// GetPendingApprovalsFor lists the undecided slots userID can act on: slots assigned to the
// user and role slots of every role the user currently holds. Slots of steps that already
// resolved and of instances that are not in progress are left out.
func (e *Engine) GetPendingApprovalsFor(ctx context.Context, userID string) ([]*models.Approval, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.get_pending_approvals",
		attribute.String(otelhelper.ActorKey, userID))
	defer span.End()

	approvals, err := e.pendingFor(ctx, userID)
	if err != nil {
		return nil, e.fail(ctx, span, "get_pending_approvals", "", err)
	}

	return approvals, nil
}

func (e *Engine) pendingFor(ctx context.Context, userID string) ([]*models.Approval, error) {
	direct, err := fetch(ctx, e, requestScope("find_pending_by_approver", userID), "find_pending_by_approver", func(ctx context.Context) ([]*models.Approval, error) {
		return e.persistence.ApprovalRepository().FindPendingByApprover(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	roles, err := e.directory.RolesOf(ctx, userID)
	if err != nil && !errors.Is(err, rbac.ErrUserNotFound) {
		return nil, recovery.Wrap(recovery.CategoryIntegration, "roles_of", err)
	}

	byRole, err := fetch(ctx, e, requestScope("find_pending_by_role", userID), "find_pending_by_role", func(ctx context.Context) ([]*models.Approval, error) {
		return e.persistence.ApprovalRepository().FindPendingByRole(ctx, roles)
	})
	if err != nil {
		return nil, err
	}

	instances := make(map[string]*models.WorkflowInstance)
	seen := make(map[string]bool)
	pending := make([]*models.Approval, 0, len(direct)+len(byRole))

	for _, approval := range append(direct, byRole...) {
		if seen[approval.ID] {
			continue
		}

		seen[approval.ID] = true

		instance, ok := instances[approval.InstanceID]
		if !ok {
			instance, err = e.loadInstance(ctx, approval.InstanceID)
			if persistence.IsInstanceNotFound(err) {
				e.logger.WarnContext(ctx, "Skipping approval of missing instance",
					"approval_id", approval.ID,
					"instance_id", approval.InstanceID)

				instances[approval.InstanceID] = nil

				continue
			}

			if err != nil {
				return nil, err
			}

			instances[approval.InstanceID] = instance
		}

		if instance == nil {
			continue
		}

		if instance.Status != models.InstanceStatusInProgress {
			continue
		}

		state := instance.StepState(approval.StepOrder)
		if state == nil || state.Outcome != models.StepOutcomePending {
			continue
		}

		pending = append(pending, approval)
	}

	persistence.SortApprovals(pending)

	return pending, nil
}
