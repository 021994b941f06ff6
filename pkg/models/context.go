package models

import (
	"math"
	"time"
)

// ContextKind tags which shape of InstanceContext is populated.
type ContextKind string

const (
	ContextKindBudget    ContextKind = "budget"
	ContextKindMilestone ContextKind = "milestone"
	ContextKindResource  ContextKind = "resource"
	ContextKindRisk      ContextKind = "risk"
	ContextKindChange    ContextKind = "change"
	ContextKindOpaque    ContextKind = "opaque"
)

// BudgetContext carries the values that made a budget change fire.
type BudgetContext struct {
	OldValue         float64 `json:"old_value"`
	NewValue         float64 `json:"new_value"`
	VarianceAmount   float64 `json:"variance_amount"`
	VariancePercent  float64 `json:"variance_percent"`
	ThresholdPercent float64 `json:"threshold_percent"`
	Currency         string  `json:"currency,omitempty"`
}

// MilestoneContext carries the milestone update that fired.
type MilestoneContext struct {
	MilestoneID   string     `json:"milestone_id"`
	MilestoneType string     `json:"milestone_type"`
	Status        string     `json:"status,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

// ResourceContext carries the allocation that fired.
type ResourceContext struct {
	ResourceID        string  `json:"resource_id"`
	AllocationPercent float64 `json:"allocation_percent"`
	ThresholdPercent  float64 `json:"threshold_percent"`
}

// RiskContext carries the risk escalation that fired.
type RiskContext struct {
	RiskID    string  `json:"risk_id"`
	RiskLevel string  `json:"risk_level"`
	Category  string  `json:"category,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// ChangeContext carries a change request routed through authority rules.
type ChangeContext struct {
	ChangeType   ChangeType   `json:"change_type"`
	Priority     Priority     `json:"priority"`
	CostImpact   float64      `json:"cost_impact"`
	WorkflowType WorkflowType `json:"workflow_type,omitempty"`
}

// InstanceContext is a tagged union of the known execution context shapes. Extra is the
// opaque escape hatch and is always merged into Values.
type InstanceContext struct {
	Kind        ContextKind       `json:"kind"`
	TriggerType TriggerType       `json:"trigger_type,omitempty"`
	Budget      *BudgetContext    `json:"budget,omitempty"`
	Milestone   *MilestoneContext `json:"milestone,omitempty"`
	Resource    *ResourceContext  `json:"resource,omitempty"`
	Risk        *RiskContext      `json:"risk,omitempty"`
	Change      *ChangeContext    `json:"change,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
}

// Values flattens the context into the map conditions are evaluated against.
func (c InstanceContext) Values() map[string]any {
	values := make(map[string]any, len(c.Extra)+8)

	for k, v := range c.Extra {
		values[k] = v
	}

	values["kind"] = string(c.Kind)

	if c.TriggerType != "" {
		values["triggerType"] = string(c.TriggerType)
	}

	switch c.Kind {
	case ContextKindBudget:
		if c.Budget != nil {
			values["oldValue"] = c.Budget.OldValue
			values["newValue"] = c.Budget.NewValue
			values["varianceAmount"] = c.Budget.VarianceAmount
			values["variancePercent"] = c.Budget.VariancePercent
			values["thresholdPercent"] = c.Budget.ThresholdPercent
			values["currency"] = c.Budget.Currency
		}
	case ContextKindMilestone:
		if c.Milestone != nil {
			values["milestoneId"] = c.Milestone.MilestoneID
			values["milestoneType"] = c.Milestone.MilestoneType
			values["milestoneStatus"] = c.Milestone.Status
		}
	case ContextKindResource:
		if c.Resource != nil {
			values["resourceId"] = c.Resource.ResourceID
			values["allocationPercent"] = c.Resource.AllocationPercent
			values["thresholdPercent"] = c.Resource.ThresholdPercent
		}
	case ContextKindRisk:
		if c.Risk != nil {
			values["riskId"] = c.Risk.RiskID
			values["riskLevel"] = c.Risk.RiskLevel
			values["riskCategory"] = c.Risk.Category
			values["riskScore"] = c.Risk.Score
		}
	case ContextKindChange:
		if c.Change != nil {
			values["changeType"] = string(c.Change.ChangeType)
			values["priority"] = string(c.Change.Priority)
			values["costImpact"] = c.Change.CostImpact
			values["workflowType"] = string(c.Change.WorkflowType)
		}
	case ContextKindOpaque:
	}

	return values
}

// ChangeValue returns the monetary value of the change the instance approves, used for
// authority checks. ok is false when the context carries no monetary value.
func (c InstanceContext) ChangeValue() (float64, ChangeType, bool) {
	switch {
	case c.Kind == ContextKindBudget && c.Budget != nil:
		return math.Abs(c.Budget.VarianceAmount), ChangeTypeBudget, true
	case c.Kind == ContextKindChange && c.Change != nil:
		return c.Change.CostImpact, c.Change.ChangeType, true
	}

	if raw, ok := c.Extra["costImpact"]; ok {
		if v, ok := raw.(float64); ok {
			return v, ChangeTypeScope, true
		}
	}

	return 0, "", false
}
