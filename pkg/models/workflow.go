// Package models defines the core domain models for approval workflow automation.
package models

import (
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// DefinitionStatus represents the lifecycle state of a workflow definition.
type DefinitionStatus string

const (
	DefinitionStatusDraft     DefinitionStatus = "draft"     // Editable, cannot start instances
	DefinitionStatusActive    DefinitionStatus = "active"    // Immutable, starts instances
	DefinitionStatusSuspended DefinitionStatus = "suspended" // Temporarily not startable
	DefinitionStatusArchived  DefinitionStatus = "archived"  // Historical
)

// StepType distinguishes what a step does when the instance reaches it.
type StepType string

const (
	StepTypeApproval     StepType = "approval"
	StepTypeNotification StepType = "notification"
	StepTypeCondition    StepType = "condition"
)

// ApprovalType is the quorum semantics used to decide when a step is satisfied.
type ApprovalType string

const (
	ApprovalTypeAny      ApprovalType = "any"
	ApprovalTypeAll      ApprovalType = "all"
	ApprovalTypeMajority ApprovalType = "majority"
	ApprovalTypeQuorum   ApprovalType = "quorum"
)

// Valid reports whether the approval type is one of the known values.
func (t ApprovalType) Valid() bool {
	switch t {
	case ApprovalTypeAny, ApprovalTypeAll, ApprovalTypeMajority, ApprovalTypeQuorum:
		return true
	}

	return false
}

// WorkflowDefinition is an immutable, versioned template of an approval process.
type WorkflowDefinition struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Steps       []*Step          `json:"steps"`
	Triggers    []*Trigger       `json:"triggers,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Status      DefinitionStatus `json:"status"`
	Version     int              `json:"version"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Step is one stage of a workflow definition.
type Step struct {
	Order                 int          `json:"order"`
	Type                  StepType     `json:"type"`
	Name                  string       `json:"name"`
	Approvers             []string     `json:"approvers,omitempty"`
	ApproverRoles         []string     `json:"approver_roles,omitempty"`
	OptionalApprovers     []string     `json:"optional_approvers,omitempty"`
	ApprovalType          ApprovalType `json:"approval_type,omitempty"`
	QuorumCount           *int         `json:"quorum_count,omitempty"`
	TimeoutHours          *int         `json:"timeout_hours,omitempty"`
	DependsOnStep         *int         `json:"depends_on_step,omitempty"`
	Parallel              bool         `json:"parallel,omitempty"` // Activated together with the preceding step
	Conditions            *Conditions  `json:"conditions,omitempty"`
	AutoApproveConditions *Conditions  `json:"auto_approve_conditions,omitempty"`
}

// TotalApprovers counts explicit and role-based approver slots together.
func (s *Step) TotalApprovers() int {
	return len(s.Approvers) + len(s.ApproverRoles)
}

// StepByOrder returns the step with the given order, or nil.
func (d *WorkflowDefinition) StepByOrder(order int) *Step {
	for _, step := range d.Steps {
		if step != nil && step.Order == order {
			return step
		}
	}

	return nil
}

// SortedSteps returns the non-nil steps ordered by Order. The definition is not modified.
func (d *WorkflowDefinition) SortedSteps() []*Step {
	steps := make([]*Step, 0, len(d.Steps))

	for _, step := range d.Steps {
		if step != nil {
			steps = append(steps, step)
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	return steps
}

// Groups splits the ordered steps into activation groups. A step flagged Parallel
// joins the group of the step before it.
func (d *WorkflowDefinition) Groups() [][]*Step {
	groups := make([][]*Step, 0, len(d.Steps))

	for _, step := range d.SortedSteps() {
		if step.Parallel && len(groups) > 0 {
			groups[len(groups)-1] = append(groups[len(groups)-1], step)

			continue
		}

		groups = append(groups, []*Step{step})
	}

	return groups
}

// GroupOf returns the index of the activation group containing the step order, or -1.
func (d *WorkflowDefinition) GroupOf(order int) int {
	for i, group := range d.Groups() {
		for _, step := range group {
			if step.Order == order {
				return i
			}
		}
	}

	return -1
}

// TriggerFor returns the first trigger of the given type, or nil.
func (d *WorkflowDefinition) TriggerFor(triggerType TriggerType) *Trigger {
	for _, trigger := range d.Triggers {
		if trigger != nil && trigger.Type == triggerType {
			return trigger
		}
	}

	return nil
}

// HasApprovalStep reports whether at least one step is of approval type.
func (d *WorkflowDefinition) HasApprovalStep() bool {
	for _, step := range d.Steps {
		if step != nil && step.Type == StepTypeApproval {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the definition.
func (d *WorkflowDefinition) Clone() (*WorkflowDefinition, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	clone := &WorkflowDefinition{}

	err = json.Unmarshal(data, clone)
	if err != nil {
		return nil, err
	}

	return clone, nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
