// Package validation checks proposed workflow definitions before they become usable.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/Stefan/orka-ppm-sub007/pkg/template"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxNameLength bounds definition and step names.
	MaxNameLength = 255
	// MinTimeoutHours and MaxTimeoutHours bound step SLAs.
	MinTimeoutHours = 1
	MaxTimeoutHours = 8760
	// MaxAnyApprovers is the largest approver set allowed under "any" semantics.
	MaxAnyApprovers = 10
)

// Result is the outcome of validating one definition. Errors are in check order.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validator validates workflow definitions. It never mutates its input.
type Validator struct {
	directory rbac.Directory
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewValidator creates a definition validator. directory may be nil when approver
// checks are never requested.
func NewValidator(directory rbac.Directory, logger *slog.Logger) *Validator {
	return &Validator{
		directory: directory,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "validator"),
	}
}

// Validate runs every check and accumulates all failures. The returned error is reserved
// for infrastructure failures of the RBAC directory.
func (v *Validator) Validate(ctx context.Context, definition *models.WorkflowDefinition, validateApprovers bool) (Result, error) {
	if definition == nil {
		return Result{Valid: false, Errors: []string{"workflow definition is required"}}, nil
	}

	c := &collector{}

	v.checkDefinition(definition, c)
	v.checkOrders(definition, c)

	for _, step := range definition.SortedSteps() {
		err := v.checkStep(ctx, definition, step, validateApprovers, c)
		if err != nil {
			return Result{}, err
		}
	}

	for _, step := range definition.SortedSteps() {
		v.checkApprovalType(step, c)
	}

	v.checkCrossStep(definition, c)
	v.checkTriggers(definition, c)

	if len(c.errors) > 0 {
		v.logger.DebugContext(ctx, "Workflow definition rejected",
			"definition_id", definition.ID,
			"errors", len(c.errors))
	}

	return Result{Valid: len(c.errors) == 0, Errors: c.errors}, nil
}

type collector struct {
	errors []string
}

func (c *collector) add(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (v *Validator) checkName(name string) bool {
	return v.validate.Var(name, fmt.Sprintf("required,max=%d", MaxNameLength)) == nil
}

func (v *Validator) checkDefinition(definition *models.WorkflowDefinition, c *collector) {
	if !v.checkName(definition.Name) {
		c.add("workflow name is required and must be at most %d characters", MaxNameLength)
	}

	if len(definition.SortedSteps()) == 0 {
		c.add("workflow must have at least one step")
	}

	if definition.Version < 1 {
		c.add("workflow version must be at least 1")
	}
}

func (v *Validator) checkOrders(definition *models.WorkflowDefinition, c *collector) {
	steps := definition.SortedSteps()

	for i, step := range steps {
		if step.Order != i {
			orders := make([]int, len(steps))
			for j, s := range steps {
				orders[j] = s.Order
			}

			c.add("step orders must be sequential starting at 0, got %v", orders)

			return
		}
	}
}

func (v *Validator) checkStep(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	step *models.Step,
	validateApprovers bool,
	c *collector,
) error {
	if !v.checkName(step.Name) {
		c.add("step %d: name is required and must be at most %d characters", step.Order, MaxNameLength)
	}

	switch step.Type {
	case models.StepTypeApproval, models.StepTypeNotification, models.StepTypeCondition:
	default:
		c.add("step %d: unknown step type %q", step.Order, step.Type)
	}

	if step.Type == models.StepTypeApproval && step.TotalApprovers() == 0 {
		c.add("step %d: approval steps require at least one approver or approver role", step.Order)
	}

	if step.Type == models.StepTypeCondition && step.Conditions.Empty() {
		c.add("step %d: condition steps require conditions", step.Order)
	}

	if validateApprovers && step.Type == models.StepTypeApproval {
		err := v.checkApprovers(ctx, step, c)
		if err != nil {
			return err
		}
	}

	if step.TimeoutHours != nil && (*step.TimeoutHours < MinTimeoutHours || *step.TimeoutHours > MaxTimeoutHours) {
		c.add("step %d: timeout_hours must be between %d and %d", step.Order, MinTimeoutHours, MaxTimeoutHours)
	}

	if step.DependsOnStep != nil {
		dep := *step.DependsOnStep
		if dep >= step.Order || definition.StepByOrder(dep) == nil {
			c.add("step %d: depends_on_step %d must reference an earlier existing step", step.Order, dep)
		}
	}

	if step.Parallel && step.Order == 0 {
		c.add("step 0: the first step cannot be parallel")
	}

	checkConditions(step.Order, "conditions", step.Conditions, c)
	checkConditions(step.Order, "auto_approve_conditions", step.AutoApproveConditions, c)

	return nil
}

func checkConditions(order int, field string, conditions *models.Conditions, c *collector) {
	if conditions.Empty() {
		return
	}

	for _, rule := range conditions.Rules {
		if rule.Field == "" {
			c.add("step %d: %s rule field is required", order, field)
		}

		if !rule.Operator.Valid() {
			c.add("step %d: %s rule operator %q is not supported", order, field, rule.Operator)
		}
	}

	if conditions.Expression != "" {
		err := template.Check(conditions.Expression)
		if err != nil {
			c.add("step %d: %s expression is invalid: %v", order, field, err)
		}
	}
}

func (v *Validator) checkApprovers(ctx context.Context, step *models.Step, c *collector) error {
	if v.directory == nil {
		return fmt.Errorf("approver validation requested without an RBAC directory")
	}

	for _, userID := range step.Approvers {
		exists, err := v.directory.UserExists(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to look up approver %s: %w", userID, err)
		}

		if !exists {
			c.add("step %d: approver %s does not exist", step.Order, userID)

			continue
		}

		capable, err := v.userApprovalCapable(ctx, userID)
		if err != nil {
			return err
		}

		if !capable {
			c.add("step %d: approver %s lacks approval permissions", step.Order, userID)
		}
	}

	for _, role := range step.ApproverRoles {
		exists, err := v.directory.RoleExists(ctx, role)
		if err != nil {
			return fmt.Errorf("failed to look up approver role %s: %w", role, err)
		}

		if !exists {
			c.add("step %d: approver role %s does not exist", step.Order, role)

			continue
		}

		permissions, err := v.directory.DefaultPermissions(ctx, role)
		if err != nil {
			return fmt.Errorf("failed to look up permissions of role %s: %w", role, err)
		}

		if !slices.ContainsFunc(permissions, rbac.IsApprovalCapable) {
			c.add("step %d: approver role %s lacks approval permissions", step.Order, role)
		}
	}

	return nil
}

func (v *Validator) userApprovalCapable(ctx context.Context, userID string) (bool, error) {
	for _, permission := range rbac.ApprovalCapable {
		has, err := v.directory.HasPermission(ctx, userID, permission)
		if err != nil {
			return false, fmt.Errorf("failed to check permission %s of %s: %w", permission, userID, err)
		}

		if has {
			return true, nil
		}
	}

	return false, nil
}

func (v *Validator) checkApprovalType(step *models.Step, c *collector) {
	if step.Type != models.StepTypeApproval {
		return
	}

	total := step.TotalApprovers()

	if step.ApprovalType == "" {
		c.add("step %d: approval_type is required", step.Order)

		return
	}

	if !step.ApprovalType.Valid() {
		c.add("step %d: unknown approval_type %q", step.Order, step.ApprovalType)

		return
	}

	if step.ApprovalType == models.ApprovalTypeQuorum {
		switch {
		case step.QuorumCount == nil || *step.QuorumCount < 1:
			c.add("step %d: quorum approval requires quorum_count of at least 1", step.Order)
		case *step.QuorumCount > total:
			c.add("step %d: quorum_count %d exceeds total approvers %d", step.Order, *step.QuorumCount, total)
		}

		return
	}

	if step.QuorumCount != nil {
		c.add("step %d: quorum_count is only allowed for quorum approval", step.Order)
	}

	if step.ApprovalType == models.ApprovalTypeMajority && total < 2 {
		c.add("step %d: majority approval requires at least 2 approvers", step.Order)
	}
}

func (v *Validator) checkCrossStep(definition *models.WorkflowDefinition, c *collector) {
	if len(definition.SortedSteps()) > 0 && !definition.HasApprovalStep() {
		c.add("workflow must have at least one approval step")
	}

	for _, step := range definition.SortedSteps() {
		if step.Type == models.StepTypeApproval &&
			step.ApprovalType == models.ApprovalTypeAny &&
			step.TotalApprovers() > MaxAnyApprovers {
			c.add("step %d: %d approvers under any approval risks concurrent decisions; use at most %d",
				step.Order, step.TotalApprovers(), MaxAnyApprovers)
		}
	}
}

func (v *Validator) checkTriggers(definition *models.WorkflowDefinition, c *collector) {
	for i, trigger := range definition.Triggers {
		if trigger == nil {
			c.add("trigger %d: trigger is required", i)

			continue
		}

		if !trigger.Type.Valid() {
			c.add("trigger %d: unknown trigger_type %q", i, trigger.Type)

			continue
		}

		if !trigger.Type.RequiresThresholds() {
			continue
		}

		if len(trigger.ThresholdValues) == 0 {
			c.add("trigger %d: %s triggers require threshold_values", i, trigger.Type)

			continue
		}

		if raw, ok := trigger.ThresholdValues["percentage"]; ok {
			percentage, ok := template.ToFiniteFloat(raw)
			if !ok || percentage <= 0 {
				c.add("trigger %d: threshold percentage must be a positive number", i)
			}
		}
	}
}
