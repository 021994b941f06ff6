// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/google/uuid"
)

// CreateTestStep creates an approval step with default values that can be overridden.
func CreateTestStep(order int, overrides ...func(*models.Step)) *models.Step {
	step := &models.Step{
		Order:        order,
		Type:         models.StepTypeApproval,
		Name:         "Review",
		Approvers:    []string{"alice"},
		ApprovalType: models.ApprovalTypeAny,
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithApprovers sets the explicit approvers.
func WithApprovers(approvers ...string) func(*models.Step) {
	return func(s *models.Step) {
		s.Approvers = approvers
	}
}

// WithRoles sets the approver roles.
func WithRoles(roles ...string) func(*models.Step) {
	return func(s *models.Step) {
		s.ApproverRoles = roles
	}
}

// WithApprovalType sets the approval type and, for quorum, the quorum count.
func WithApprovalType(approvalType models.ApprovalType, quorum ...int) func(*models.Step) {
	return func(s *models.Step) {
		s.ApprovalType = approvalType
		if len(quorum) > 0 {
			s.QuorumCount = models.IntPtr(quorum[0])
		}
	}
}

// WithDependsOn sets the step dependency.
func WithDependsOn(order int) func(*models.Step) {
	return func(s *models.Step) {
		s.DependsOnStep = models.IntPtr(order)
	}
}

// WithParallel joins the step to the previous activation group.
func WithParallel() func(*models.Step) {
	return func(s *models.Step) {
		s.Parallel = true
	}
}

// WithTimeout sets the step SLA.
func WithTimeout(hours int) func(*models.Step) {
	return func(s *models.Step) {
		s.TimeoutHours = models.IntPtr(hours)
	}
}

// CreateTestDefinition creates an active definition with the given steps.
func CreateTestDefinition(steps ...*models.Step) *models.WorkflowDefinition {
	if len(steps) == 0 {
		steps = []*models.Step{CreateTestStep(0)}
	}

	now := time.Now().UTC()

	return &models.WorkflowDefinition{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Steps:     steps,
		Status:    models.DefinitionStatusActive,
		Version:   1,
		CreatedBy: "test-user",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestDirectory returns a directory with approvers alice, bob, carol and erin, the
// executive frank, the viewer dave and the roles project_manager, finance_manager,
// executive_sponsor and viewer.
func NewTestDirectory() *rbac.StaticDirectory {
	return rbac.NewStaticDirectory(rbac.DirectorySpec{
		Roles: map[string]rbac.RoleSpec{
			"project_manager": {
				Permissions:    []rbac.Permission{rbac.PermissionWorkflowApprove, rbac.PermissionProjectRead},
				ApprovalLimits: map[string]float64{"default": 50000, "BUDGET": 75000},
			},
			"finance_manager": {
				Permissions:    []rbac.Permission{rbac.PermissionBudgetApprove},
				ApprovalLimits: map[string]float64{"default": 250000},
			},
			"executive_sponsor": {
				Permissions:    []rbac.Permission{rbac.PermissionWorkflowApprove},
				ApprovalLimits: map[string]float64{"default": 1000000},
			},
			"viewer": {
				Permissions: []rbac.Permission{rbac.PermissionProjectRead},
			},
		},
		Users: map[string]rbac.UserSpec{
			"alice": {Roles: []string{"project_manager"}},
			"bob":   {Roles: []string{"finance_manager"}},
			"carol": {Roles: []string{"project_manager"}},
			"erin":  {Roles: []string{"finance_manager"}},
			"dave":  {Roles: []string{"viewer"}},
			"frank": {Roles: []string{"executive_sponsor"}},
		},
	})
}
