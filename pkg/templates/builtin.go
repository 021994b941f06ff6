package templates

import "github.com/Stefan/orka-ppm-sub007/pkg/models"

func builtins() []*Template {
	return []*Template{budgetApproval(), milestoneApproval(), resourceAllocation()}
}

func budgetApproval() *Template {
	return &Template{
		Type:        TypeBudgetApproval,
		Version:     1,
		Description: "Budget variance review by project and finance management, with executive sign-off for large variances",
		CustomizableFields: []string{
			FieldName, FieldApprovers, FieldApproverRoles, FieldOptionalApprovers,
			FieldApprovalType, FieldQuorumCount, FieldTimeoutHours,
		},
		Definition: &models.WorkflowDefinition{
			Name:        "Budget Change Approval",
			Description: "Approves budget changes whose variance exceeds the configured threshold",
			Steps: []*models.Step{
				{
					Order:         0,
					Type:          models.StepTypeApproval,
					Name:          "Project Manager Review",
					ApproverRoles: []string{"project_manager"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(48),
				},
				{
					Order:         1,
					Type:          models.StepTypeApproval,
					Name:          "Finance Review",
					ApproverRoles: []string{"finance_manager"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(72),
				},
				{
					Order:         2,
					Type:          models.StepTypeApproval,
					Name:          "Executive Approval",
					ApproverRoles: []string{"executive_sponsor"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(120),
					Conditions: &models.Conditions{
						Rules: []models.Rule{{Field: "variancePercent", Operator: models.OperatorGte, Value: 25.0}},
					},
				},
			},
			Triggers: []*models.Trigger{{
				Type:            models.TriggerTypeBudgetChange,
				ThresholdValues: map[string]any{"percentage": 10.0},
			}},
		},
	}
}

func milestoneApproval() *Template {
	return &Template{
		Type:               TypeMilestoneApproval,
		Version:            1,
		Description:        "Delivery review and stakeholder sign-off for approval-gated milestones",
		CustomizableFields: []string{FieldName, FieldApprovers, FieldApproverRoles, FieldTimeoutHours},
		Definition: &models.WorkflowDefinition{
			Name:        "Milestone Approval",
			Description: "Confirms completion of approval-gated milestones",
			Steps: []*models.Step{
				{
					Order:         0,
					Type:          models.StepTypeApproval,
					Name:          "Delivery Review",
					ApproverRoles: []string{"project_manager"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(72),
				},
				{
					Order:         1,
					Type:          models.StepTypeNotification,
					Name:          "Notify Finance",
					ApproverRoles: []string{"finance_manager"},
				},
				{
					Order:         2,
					Type:          models.StepTypeApproval,
					Name:          "Stakeholder Sign-off",
					ApproverRoles: []string{"executive_sponsor"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(120),
				},
			},
			Triggers: []*models.Trigger{{
				Type:       models.TriggerTypeMilestoneUpdate,
				Conditions: map[string]any{"milestone_types": []any{"phase_gate", "go_live"}},
			}},
		},
	}
}

func resourceAllocation() *Template {
	return &Template{
		Type:        TypeResourceAllocation,
		Version:     1,
		Description: "Parallel project and finance review of resource over-allocation",
		CustomizableFields: []string{
			FieldApprovers, FieldApproverRoles, FieldApprovalType, FieldQuorumCount, FieldTimeoutHours,
		},
		Definition: &models.WorkflowDefinition{
			Name:        "Resource Allocation Approval",
			Description: "Approves allocations above the utilization threshold",
			Steps: []*models.Step{
				{
					Order:         0,
					Type:          models.StepTypeApproval,
					Name:          "Project Manager Review",
					ApproverRoles: []string{"project_manager"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(24),
				},
				{
					Order:         1,
					Type:          models.StepTypeApproval,
					Name:          "Capacity Review",
					ApproverRoles: []string{"finance_manager"},
					ApprovalType:  models.ApprovalTypeAny,
					TimeoutHours:  models.IntPtr(24),
					Parallel:      true,
				},
			},
			Triggers: []*models.Trigger{{
				Type:            models.TriggerTypeResourceAllocation,
				ThresholdValues: map[string]any{"allocation_percent": 50.0},
			}},
		},
	}
}
