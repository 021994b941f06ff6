package authority

import (
	"fmt"
	"strings"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
)

// PathDefinition converts an approval path into a workflow definition. Path step N becomes
// order N-1; a required step without a dependency after the first runs in parallel with its
// predecessor, and an optional step becomes a notification step.
func PathDefinition(name string, workflowType models.WorkflowType, path []models.ApprovalPathStep) *models.WorkflowDefinition {
	steps := make([]*models.Step, 0, len(path))

	for _, p := range path {
		step := &models.Step{
			Order:         p.StepNumber - 1,
			Type:          models.StepTypeApproval,
			Name:          fmt.Sprintf("%s approval", strings.ReplaceAll(p.ApproverRole, "_", " ")),
			ApproverRoles: []string{p.ApproverRole},
			ApprovalType:  models.ApprovalTypeAny,
			Parallel:      p.DependsOn == nil && p.StepNumber > 1,
		}

		if p.TimeoutHours > 0 {
			step.TimeoutHours = models.IntPtr(p.TimeoutHours)
		}

		if p.DependsOn != nil {
			step.DependsOnStep = models.IntPtr(*p.DependsOn - 1)
		}

		if !p.IsRequired {
			step.Type = models.StepTypeNotification
			step.Name = fmt.Sprintf("%s review", strings.ReplaceAll(p.ApproverRole, "_", " "))
		}

		steps = append(steps, step)
	}

	return &models.WorkflowDefinition{
		Name:     name,
		Steps:    steps,
		Triggers: []*models.Trigger{{Type: models.TriggerTypeManual}},
		Metadata: map[string]any{"workflow_type": string(workflowType)},
		Status:   models.DefinitionStatusDraft,
		Version:  1,
	}
}
