// Package authority decides who may approve what: approval limits per role, workflow type
// selection and approval path construction for change requests.
package authority

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
)

const (
	// HighValueThreshold is the cost impact above which a change is HIGH_VALUE.
	HighValueThreshold = 100_000.0
	// ExecutiveThreshold adds an executive sponsor to HIGH_VALUE paths.
	ExecutiveThreshold = 500_000.0
	// StandardFinanceThreshold adds a finance review to STANDARD paths.
	StandardFinanceThreshold = 25_000.0
)

// Approver roles used by computed approval paths.
const (
	RoleEmergencyApprover = "emergency_approver"
	RoleProjectManager    = "project_manager"
	RoleFinanceManager    = "finance_manager"
	RoleExecutiveSponsor  = "executive_sponsor"
	RoleComplianceOfficer = "compliance_officer"
	RoleSafetyOfficer     = "safety_officer"
	RoleQualityManager    = "quality_manager"
	RoleTechnicalLead     = "technical_lead"
)

// Checker answers approval authority questions from directory data. It holds no mutable
// state, so identical inputs always produce identical answers.
type Checker struct {
	directory rbac.Directory
	logger    *slog.Logger
}

// NewChecker creates an authority checker.
func NewChecker(directory rbac.Directory, logger *slog.Logger) *Checker {
	return &Checker{
		directory: directory,
		logger:    logger.With("module", "authority"),
	}
}

// CheckApprovalAuthority reports whether userID, acting under role, may approve a change of
// changeValue and changeType. A user without a configured limit for the role has no authority.
func (c *Checker) CheckApprovalAuthority(
	ctx context.Context,
	userID string,
	changeValue float64,
	changeType models.ChangeType,
	role string,
) (bool, error) {
	limit, ok, err := c.directory.ApprovalLimit(ctx, userID, role, string(changeType))
	if err != nil {
		return false, fmt.Errorf("failed to look up approval limit for %s/%s: %w", userID, role, err)
	}

	if !ok {
		c.logger.DebugContext(ctx, "No approval limit configured", "user_id", userID, "role", role)

		return false, nil
	}

	return changeValue <= limit, nil
}

// DetermineWorkflowType applies the fixed precedence; first match wins.
func (c *Checker) DetermineWorkflowType(change models.ChangeCharacteristics) models.WorkflowType {
	return DetermineWorkflowType(change)
}

// DetermineApprovalPath builds the approval path for the workflow type.
func (c *Checker) DetermineApprovalPath(change models.ChangeCharacteristics, workflowType models.WorkflowType) []models.ApprovalPathStep {
	return DetermineApprovalPath(change, workflowType)
}

// DetermineWorkflowType applies the fixed precedence; first match wins.
func DetermineWorkflowType(change models.ChangeCharacteristics) models.WorkflowType {
	switch {
	case change.Priority == models.PriorityEmergency:
		return models.WorkflowTypeEmergency
	case change.CostImpact > HighValueThreshold:
		return models.WorkflowTypeHighValue
	case change.ChangeType == models.ChangeTypeRegulatory,
		change.ChangeType == models.ChangeTypeSafety,
		change.ChangeType == models.ChangeTypeQuality:
		return models.WorkflowTypeRegulatory
	case change.Priority == models.PriorityCritical:
		return models.WorkflowTypeExpedited
	default:
		return models.WorkflowTypeStandard
	}
}

// DetermineApprovalPath is a pure function of its inputs. Step numbers start at 1 and every
// DependsOn references an earlier step of the same path.
func DetermineApprovalPath(change models.ChangeCharacteristics, workflowType models.WorkflowType) []models.ApprovalPathStep {
	path := newPathBuilder()

	switch workflowType {
	case models.WorkflowTypeEmergency:
		first := path.add(RoleEmergencyApprover, true, nil, 4)
		// Post-hoc review, informational only.
		path.add(RoleProjectManager, false, &first, 24)
	case models.WorkflowTypeHighValue:
		pm := path.add(RoleProjectManager, true, nil, 48)
		finance := path.add(RoleFinanceManager, true, &pm, 72)

		if change.CostImpact > ExecutiveThreshold {
			path.add(RoleExecutiveSponsor, true, &finance, 120)
		}
	case models.WorkflowTypeRegulatory:
		pm := path.add(RoleProjectManager, true, nil, 48)
		compliance := path.add(RoleComplianceOfficer, true, &pm, 72)

		switch change.ChangeType {
		case models.ChangeTypeSafety:
			path.add(RoleSafetyOfficer, true, &compliance, 72)
		case models.ChangeTypeQuality:
			path.add(RoleQualityManager, true, &compliance, 72)
		}
	case models.WorkflowTypeExpedited:
		path.add(RoleProjectManager, true, nil, 24)
		path.add(RoleTechnicalLead, true, nil, 24)
	default:
		pm := path.add(RoleProjectManager, true, nil, 72)

		if change.CostImpact > StandardFinanceThreshold {
			path.add(RoleFinanceManager, true, &pm, 72)
		}
	}

	return path.steps
}

type pathBuilder struct {
	steps []models.ApprovalPathStep
}

func newPathBuilder() *pathBuilder {
	return &pathBuilder{steps: make([]models.ApprovalPathStep, 0, 3)}
}

func (b *pathBuilder) add(role string, required bool, dependsOn *int, timeoutHours int) int {
	number := len(b.steps) + 1

	var dep *int
	if dependsOn != nil {
		dep = models.IntPtr(*dependsOn)
	}

	b.steps = append(b.steps, models.ApprovalPathStep{
		StepNumber:   number,
		ApproverRole: role,
		IsRequired:   required,
		DependsOn:    dep,
		TimeoutHours: timeoutHours,
	})

	return number
}
