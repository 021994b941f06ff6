package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/notify"
	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
	"github.com/Stefan/orka-ppm-sub007/pkg/template"
)

// transition collects the in-memory changes of one instance operation. Nothing is written
// until the engine saves it.
type transition struct {
	definition *models.WorkflowDefinition
	instance   *models.WorkflowInstance
	approvals  []*models.Approval
	changed    map[string]bool
	intents    []notify.Intent
	completed  bool
	now        time.Time
}

func newTransition(definition *models.WorkflowDefinition, instance *models.WorkflowInstance, approvals []*models.Approval, now time.Time) *transition {
	return &transition{
		definition: definition,
		instance:   instance,
		approvals:  approvals,
		changed:    make(map[string]bool),
		now:        now,
	}
}

func (t *transition) touch(approval *models.Approval) {
	t.changed[approval.ID] = true
}

func (t *transition) changedApprovals() []*models.Approval {
	out := make([]*models.Approval, 0, len(t.changed))

	for _, approval := range t.approvals {
		if t.changed[approval.ID] {
			out = append(out, approval)
		}
	}

	return out
}

func (t *transition) stepApprovals(order int) []*models.Approval {
	out := make([]*models.Approval, 0)

	for _, approval := range t.approvals {
		if approval.StepOrder == order {
			out = append(out, approval)
		}
	}

	return out
}

func (t *transition) resolve(state *models.StepState, outcome models.StepOutcome) {
	state.Outcome = outcome
	now := t.now
	state.ResolvedAt = &now
}

func (t *transition) notify(intentType notify.Type, recipient string, payload map[string]any) {
	t.intents = append(t.intents, notify.Intent{Type: intentType, Recipient: recipient, Payload: payload})
}

func (t *transition) payload(order int) map[string]any {
	return map[string]any{
		"instance_id":   t.instance.ID,
		"definition_id": t.instance.DefinitionID,
		"entity_type":   t.instance.EntityType,
		"entity_id":     t.instance.EntityID,
		"step_order":    order,
	}
}

// complete moves the instance into a terminal status and tells the initiator.
func (t *transition) complete(status models.InstanceStatus) {
	t.instance.Status = status
	now := t.now
	t.instance.CompletedAt = &now
	t.completed = true

	intentType := notify.TypeInstanceApproved
	if status == models.InstanceStatusRejected {
		intentType = notify.TypeInstanceRejected
	}

	if t.instance.InitiatedBy != "" {
		t.notify(intentType, t.instance.InitiatedBy, t.payload(t.instance.CurrentStepOrder))
	}
}

// advance activates groups from index from until one waits on decisions. When every group
// is resolved the instance is approved.
func (t *transition) advance(from int) error {
	groups := t.definition.Groups()
	values := t.instance.Context.Values()

	for g := from; g < len(groups); g++ {
		for _, step := range groups[g] {
			err := t.activate(step, values)
			if err != nil {
				return err
			}
		}

		if !t.groupResolved(groups[g]) {
			t.instance.Status = models.InstanceStatusInProgress
			t.instance.CurrentStepOrder = groups[g][0].Order

			return nil
		}

		t.instance.CurrentStepOrder = groups[g][len(groups[g])-1].Order
	}

	t.complete(models.InstanceStatusApproved)

	return nil
}

func (t *transition) groupResolved(group []*models.Step) bool {
	for _, step := range group {
		state := t.instance.StepState(step.Order)
		if state == nil || !state.Outcome.Resolved() {
			return false
		}
	}

	return true
}

func (t *transition) activate(step *models.Step, values map[string]any) error {
	state := t.instance.StepState(step.Order)
	if state == nil {
		return recovery.Wrap(recovery.CategoryStateTransition, "activate_step",
			fmt.Errorf("%w: step %d has no state", ErrIllegalTransition, step.Order))
	}

	if state.Outcome == models.StepOutcomeSkipped {
		return nil
	}

	now := t.now
	state.ActivatedAt = &now

	holds, err := evaluate(step.Conditions, values, step.Order)
	if err != nil {
		return err
	}

	if step.Type == models.StepTypeCondition {
		t.resolve(state, models.StepOutcomeSatisfied)

		if !holds {
			t.skipDependents(step.Order)
		}

		return nil
	}

	if !holds {
		t.resolve(state, models.StepOutcomeSkipped)

		return nil
	}

	if step.Type == models.StepTypeNotification {
		for _, recipient := range recipients(step) {
			t.notify(notify.TypeStepNotification, recipient, t.payload(step.Order))
		}

		t.resolve(state, models.StepOutcomeSatisfied)

		return nil
	}

	auto := false
	if !step.AutoApproveConditions.Empty() {
		auto, err = evaluate(step.AutoApproveConditions, values, step.Order)
		if err != nil {
			return err
		}
	}

	created := t.materialize(step, auto)

	if auto {
		t.resolve(state, models.StepOutcomeSatisfied)

		return nil
	}

	state.Outcome = models.StepOutcomePending

	for _, approval := range created {
		payload := t.payload(step.Order)
		payload["approval_id"] = approval.ID
		payload["step_name"] = step.Name

		t.notify(notify.TypeApprovalRequested, recipientOf(approval), payload)
	}

	return nil
}

// materialize creates one slot per explicit approver, one per role and one optional slot
// per optional approver.
func (t *transition) materialize(step *models.Step, auto bool) []*models.Approval {
	created := make([]*models.Approval, 0, step.TotalApprovers()+len(step.OptionalApprovers))

	add := func(approverID, role string, isRequired bool) {
		approval := &models.Approval{
			ID:            newID(),
			InstanceID:    t.instance.ID,
			StepOrder:     step.Order,
			ApproverID:    approverID,
			ApproverRole:  role,
			Decision:      models.DecisionPending,
			IsRequired:    isRequired,
			DependsOnStep: step.DependsOnStep,
			CreatedAt:     t.now,
		}

		if auto {
			now := t.now
			approval.Decision = models.DecisionApproved
			approval.DecidedBy = SystemActor
			approval.DecisionAt = &now
			approval.Comments = "auto-approved"
		}

		created = append(created, approval)
		t.approvals = append(t.approvals, approval)
		t.touch(approval)
	}

	for _, approver := range step.Approvers {
		add(approver, "", true)
	}

	for _, role := range step.ApproverRoles {
		add("", role, true)
	}

	for _, approver := range step.OptionalApprovers {
		if slices.Contains(step.Approvers, approver) {
			continue
		}

		add(approver, "", false)
	}

	return created
}

// skipDependents skips every later step that depends on order.
func (t *transition) skipDependents(order int) {
	for _, step := range t.definition.SortedSteps() {
		if step.DependsOnStep == nil || *step.DependsOnStep != order {
			continue
		}

		state := t.instance.StepState(step.Order)
		if state != nil && state.Outcome == models.StepOutcomeInactive {
			t.resolve(state, models.StepOutcomeSkipped)
		}
	}
}

func evaluate(conditions *models.Conditions, values map[string]any, order int) (bool, error) {
	holds, err := template.Evaluate(conditions, values)
	if err != nil {
		return false, recovery.Wrap(recovery.CategoryValidation, "evaluate_conditions",
			fmt.Errorf("%w: step %d: %w", ErrInvalidCondition, order, err))
	}

	return holds, nil
}

func recipients(step *models.Step) []string {
	out := make([]string, 0, step.TotalApprovers())
	out = append(out, step.Approvers...)

	for _, role := range step.ApproverRoles {
		out = append(out, notify.RolePrefix+role)
	}

	return out
}

func recipientOf(approval *models.Approval) string {
	if approval.RoleBased() {
		return notify.RolePrefix + approval.ApproverRole
	}

	return approval.ApproverID
}
