package models

import "time"

// InstanceStatus represents the state of a running workflow instance.
type InstanceStatus string

const (
	InstanceStatusPending    InstanceStatus = "pending"
	InstanceStatusInProgress InstanceStatus = "in_progress"
	InstanceStatusApproved   InstanceStatus = "approved"
	InstanceStatusRejected   InstanceStatus = "rejected"
	InstanceStatusSuspended  InstanceStatus = "suspended"
	InstanceStatusCancelled  InstanceStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from the status.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusApproved || s == InstanceStatusRejected || s == InstanceStatusCancelled
}

// StepOutcome is the resolution of a single step inside an instance.
type StepOutcome string

const (
	StepOutcomeInactive  StepOutcome = "inactive"
	StepOutcomePending   StepOutcome = "pending"
	StepOutcomeSatisfied StepOutcome = "satisfied"
	StepOutcomeFailed    StepOutcome = "failed"
	StepOutcomeSkipped   StepOutcome = "skipped"
)

// Resolved reports whether the outcome no longer blocks the group.
func (o StepOutcome) Resolved() bool {
	return o == StepOutcomeSatisfied || o == StepOutcomeSkipped
}

// StepState tracks one definition step within an instance.
type StepState struct {
	Order       int         `json:"order"`
	Outcome     StepOutcome `json:"outcome"`
	ActivatedAt *time.Time  `json:"activated_at,omitempty"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
	Escalated   bool        `json:"escalated,omitempty"`
}

// WorkflowInstance is a running execution of a definition against one business entity.
type WorkflowInstance struct {
	ID                 string          `json:"id"`
	DefinitionID       string          `json:"definition_id"`
	DefinitionVersion  int             `json:"definition_version"`
	EntityType         string          `json:"entity_type"`
	EntityID           string          `json:"entity_id"`
	CurrentStepOrder   int             `json:"current_step_order"`
	Status             InstanceStatus  `json:"status"`
	Steps              []*StepState    `json:"steps"`
	Context            InstanceContext `json:"context"`
	InitiatedBy        string          `json:"initiated_by"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
	RequiresRollback   bool            `json:"requires_rollback,omitempty"`
	RequiresEscalation bool            `json:"requires_escalation,omitempty"`
	SuspendedReason    string          `json:"suspended_reason,omitempty"`
}

// StepState returns the state tracked for the step order, or nil.
func (i *WorkflowInstance) StepState(order int) *StepState {
	for _, state := range i.Steps {
		if state.Order == order {
			return state
		}
	}

	return nil
}

// Entity identifies the business entity an instance runs against.
type Entity struct {
	Type string `json:"entity_type" validate:"required"`
	ID   string `json:"entity_id"   validate:"required"`
}

// Decision is the state of one approval slot.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Approval is one decision slot for one approver or role at one step.
type Approval struct {
	ID            string     `json:"id"`
	InstanceID    string     `json:"instance_id"`
	StepOrder     int        `json:"step_order"`
	ApproverID    string     `json:"approver_id,omitempty"`
	ApproverRole  string     `json:"approver_role,omitempty"`
	Decision      Decision   `json:"decision"`
	DecidedBy     string     `json:"decided_by,omitempty"`
	DecisionAt    *time.Time `json:"decision_at,omitempty"`
	Comments      string     `json:"comments,omitempty"`
	IsRequired    bool       `json:"is_required"`
	DependsOnStep *int       `json:"depends_on_step,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RoleBased reports whether the slot is resolved to role holders at decision time.
func (a *Approval) RoleBased() bool {
	return a.ApproverID == "" && a.ApproverRole != ""
}
