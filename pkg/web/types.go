package web

import (
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
)

// CreateDefinitionRequest represents the request body for creating a draft definition.
type CreateDefinitionRequest struct {
	Name        string            `json:"name"                  validate:"required,max=255"`
	Description string            `json:"description,omitempty"`
	Steps       []*models.Step    `json:"steps"                 validate:"required,min=1"`
	Triggers    []*models.Trigger `json:"triggers,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedBy   string            `json:"created_by"            validate:"required"`
}

// UpdateDefinitionRequest replaces the content of a draft definition.
type UpdateDefinitionRequest struct {
	Name        string            `json:"name"                  validate:"required,max=255"`
	Description string            `json:"description,omitempty"`
	Steps       []*models.Step    `json:"steps"                 validate:"required,min=1"`
	Triggers    []*models.Trigger `json:"triggers,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

type ValidateDefinitionRequest struct {
	Definition        *models.WorkflowDefinition `json:"definition"         validate:"required"`
	ValidateApprovers bool                       `json:"validate_approvers"`
}

type NewVersionRequest struct {
	CreatedBy string `json:"created_by" validate:"required"`
}

// InstantiateTemplateRequest represents the request body for both instantiating and
// dry-run validating a template.
type InstantiateTemplateRequest struct {
	Name           string                    `json:"name,omitempty"`
	Customizations *templates.Customizations `json:"customizations,omitempty"`
	CreatedBy      string                    `json:"created_by"               validate:"required"`
}

// ControlRequest carries the optional reason of a suspend or cancel.
type ControlRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1024"`
}

type DecisionRequest struct {
	Decision models.Decision `json:"decision"           validate:"required,oneof=approved rejected"`
	Actor    string          `json:"actor"              validate:"required"`
	Comments string          `json:"comments,omitempty" validate:"max=4096"`
}

type AuthorityCheckRequest struct {
	UserID      string            `json:"user_id"      validate:"required"`
	ChangeValue float64           `json:"change_value" validate:"gte=0"`
	ChangeType  models.ChangeType `json:"change_type"  validate:"required"`
	Role        string            `json:"role"         validate:"required"`
}

type ChangeCharacteristicsRequest struct {
	Priority   models.Priority   `json:"priority"    validate:"required,oneof=LOW MEDIUM HIGH CRITICAL EMERGENCY"`
	CostImpact float64           `json:"cost_impact" validate:"gte=0"`
	ChangeType models.ChangeType `json:"change_type" validate:"required,oneof=SCOPE SCHEDULE BUDGET RESOURCE DESIGN REGULATORY SAFETY QUALITY"`
}

func (r ChangeCharacteristicsRequest) characteristics() models.ChangeCharacteristics {
	return models.ChangeCharacteristics{
		Priority:   r.Priority,
		CostImpact: r.CostImpact,
		ChangeType: r.ChangeType,
	}
}

// ApprovalPathRequest computes a path for the given workflow type, or for the type the
// change characteristics select when WorkflowType is empty.
type ApprovalPathRequest struct {
	ChangeCharacteristicsRequest

	WorkflowType models.WorkflowType `json:"workflow_type,omitempty" validate:"omitempty,oneof=EMERGENCY HIGH_VALUE REGULATORY EXPEDITED STANDARD"`
}

type AuthorityCheckResponse struct {
	UserID     string  `json:"user_id"`
	Role       string  `json:"role"`
	Authorized bool    `json:"authorized"`
	Value      float64 `json:"change_value"`
}

type ApprovalPathResponse struct {
	WorkflowType models.WorkflowType       `json:"workflow_type"`
	Path         []models.ApprovalPathStep `json:"path"`
}

type PendingApprovalsResponse struct {
	UserID    string             `json:"user_id"`
	Approvals []*models.Approval `json:"approvals"`
	Count     int                `json:"count"`
}
