package models

// TriggerType is the kind of domain event a trigger binds to.
type TriggerType string

const (
	TriggerTypeBudgetChange       TriggerType = "budget_change"
	TriggerTypeMilestoneUpdate    TriggerType = "milestone_update"
	TriggerTypeResourceAllocation TriggerType = "resource_allocation"
	TriggerTypeRiskThreshold      TriggerType = "risk_threshold"
	TriggerTypeManual             TriggerType = "manual"
)

// Valid reports whether the trigger type is one of the five known values.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerTypeBudgetChange, TriggerTypeMilestoneUpdate, TriggerTypeResourceAllocation,
		TriggerTypeRiskThreshold, TriggerTypeManual:
		return true
	}

	return false
}

// Trigger binds a domain event type to the data deciding whether the event spawns an instance.
type Trigger struct {
	Type            TriggerType    `json:"trigger_type"`
	ThresholdValues map[string]any `json:"threshold_values,omitempty"`
	Conditions      map[string]any `json:"conditions,omitempty"`
}

// RequiresThresholds reports whether the trigger type must carry threshold values.
func (t TriggerType) RequiresThresholds() bool {
	return t == TriggerTypeBudgetChange || t == TriggerTypeRiskThreshold
}
