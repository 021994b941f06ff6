package models

// ChangeType classifies a change request.
type ChangeType string

const (
	ChangeTypeScope      ChangeType = "SCOPE"
	ChangeTypeSchedule   ChangeType = "SCHEDULE"
	ChangeTypeBudget     ChangeType = "BUDGET"
	ChangeTypeResource   ChangeType = "RESOURCE"
	ChangeTypeDesign     ChangeType = "DESIGN"
	ChangeTypeRegulatory ChangeType = "REGULATORY"
	ChangeTypeSafety     ChangeType = "SAFETY"
	ChangeTypeQuality    ChangeType = "QUALITY"
)

// Priority is the urgency of a change request.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityMedium    Priority = "MEDIUM"
	PriorityHigh      Priority = "HIGH"
	PriorityCritical  Priority = "CRITICAL"
	PriorityEmergency Priority = "EMERGENCY"
)

// WorkflowType is the approval track chosen for a change.
type WorkflowType string

const (
	WorkflowTypeEmergency  WorkflowType = "EMERGENCY"
	WorkflowTypeHighValue  WorkflowType = "HIGH_VALUE"
	WorkflowTypeRegulatory WorkflowType = "REGULATORY"
	WorkflowTypeExpedited  WorkflowType = "EXPEDITED"
	WorkflowTypeStandard   WorkflowType = "STANDARD"
)

// ChangeCharacteristics are the inputs to workflow type selection.
type ChangeCharacteristics struct {
	Priority   Priority   `json:"priority"`
	CostImpact float64    `json:"cost_impact"`
	ChangeType ChangeType `json:"change_type"`
}

// ApprovalPathStep is one step of a computed approval path.
type ApprovalPathStep struct {
	StepNumber   int    `json:"step_number"`
	ApproverRole string `json:"approver_role"`
	IsRequired   bool   `json:"is_required"`
	DependsOn    *int   `json:"depends_on,omitempty"`
	TimeoutHours int    `json:"timeout_hours"`
}
