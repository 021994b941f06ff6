package triggers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Stefan/orka-ppm-sub007/pkg/authority"
	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/eventbus"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/template"
)

// ChangeRequest is a change submitted for approval. Its workflow is computed from the
// change characteristics rather than bound in configuration.
type ChangeRequest struct {
	events.BaseEvent

	ChangeType models.ChangeType `json:"change_type"`
	Priority   models.Priority   `json:"priority"`
	CostImpact float64           `json:"cost_impact"`
}

// OnBudgetChange fires when the budget variance reaches the threshold. A percentage
// threshold on the bound definition's budget trigger overrides the configured one.
func (i *Integrator) OnBudgetChange(ctx context.Context, event events.BudgetChanged) (*Outcome, error) {
	triggerType := models.TriggerTypeBudgetChange

	return i.traced(ctx, "triggers.budget_change", triggerType, event.BaseEvent, func(ctx context.Context) (*Outcome, error) {
		definition, ok, err := i.bound(ctx, triggerType)
		if err != nil || !ok {
			return i.unbound(ctx, triggerType, err)
		}

		threshold := i.config.BudgetThresholdPercent
		if v, ok := thresholdValue(definition, triggerType, "percentage"); ok && v > 0 {
			threshold = v
		}

		amount, percent := BudgetVariance(event.OldValue, event.NewValue)
		if percent < threshold {
			return notFired(fmt.Sprintf("variance %.2f%% is below the %.2f%% threshold", percent, threshold)), nil
		}

		return i.fire(ctx, event.BaseEvent, triggerType, definition, models.InstanceContext{
			Kind:        models.ContextKindBudget,
			TriggerType: triggerType,
			Budget: &models.BudgetContext{
				OldValue:         event.OldValue,
				NewValue:         event.NewValue,
				VarianceAmount:   amount,
				VariancePercent:  percent,
				ThresholdPercent: threshold,
				Currency:         event.Currency,
			},
			Extra: extra(event.BaseEvent),
		})
	})
}

// OnMilestoneUpdate fires on every update of an approval-gated milestone type.
func (i *Integrator) OnMilestoneUpdate(ctx context.Context, event events.MilestoneUpdated) (*Outcome, error) {
	triggerType := models.TriggerTypeMilestoneUpdate

	return i.traced(ctx, "triggers.milestone_update", triggerType, event.BaseEvent, func(ctx context.Context) (*Outcome, error) {
		definition, ok, err := i.bound(ctx, triggerType)
		if err != nil || !ok {
			return i.unbound(ctx, triggerType, err)
		}

		gated := i.config.GatedMilestoneTypes
		if trigger := definition.TriggerFor(triggerType); trigger != nil {
			if types, ok := stringList(trigger.Conditions["milestone_types"]); ok {
				gated = types
			}
		}

		if !ShouldFireMilestone(event.MilestoneType, gated) {
			return notFired(fmt.Sprintf("milestone type %s is not approval-gated", event.MilestoneType)), nil
		}

		return i.fire(ctx, event.BaseEvent, triggerType, definition, models.InstanceContext{
			Kind:        models.ContextKindMilestone,
			TriggerType: triggerType,
			Milestone: &models.MilestoneContext{
				MilestoneID:   event.MilestoneID,
				MilestoneType: event.MilestoneType,
				Status:        event.Status,
				DueDate:       event.DueDate,
			},
			Extra: extra(event.BaseEvent),
		})
	})
}

// OnResourceAllocation fires when an allocation exceeds the utilization threshold.
func (i *Integrator) OnResourceAllocation(ctx context.Context, event events.ResourceAllocated) (*Outcome, error) {
	triggerType := models.TriggerTypeResourceAllocation

	return i.traced(ctx, "triggers.resource_allocation", triggerType, event.BaseEvent, func(ctx context.Context) (*Outcome, error) {
		definition, ok, err := i.bound(ctx, triggerType)
		if err != nil || !ok {
			return i.unbound(ctx, triggerType, err)
		}

		threshold := i.config.ResourceThresholdPercent
		if v, ok := thresholdValue(definition, triggerType, "allocation_percent"); ok {
			threshold = v
		}

		if !ShouldFireResource(event.AllocationPercent, threshold) {
			return notFired(fmt.Sprintf("allocation %.2f%% does not exceed %.2f%%", event.AllocationPercent, threshold)), nil
		}

		return i.fire(ctx, event.BaseEvent, triggerType, definition, models.InstanceContext{
			Kind:        models.ContextKindResource,
			TriggerType: triggerType,
			Resource: &models.ResourceContext{
				ResourceID:        event.ResourceID,
				AllocationPercent: event.AllocationPercent,
				ThresholdPercent:  threshold,
			},
			Extra: extra(event.BaseEvent),
		})
	})
}

// OnRiskEvent fires for high and critical risks, or for the levels listed under
// risk_levels on the bound definition's trigger.
func (i *Integrator) OnRiskEvent(ctx context.Context, event events.RiskEscalated) (*Outcome, error) {
	triggerType := models.TriggerTypeRiskThreshold

	return i.traced(ctx, "triggers.risk_threshold", triggerType, event.BaseEvent, func(ctx context.Context) (*Outcome, error) {
		definition, ok, err := i.bound(ctx, triggerType)
		if err != nil || !ok {
			return i.unbound(ctx, triggerType, err)
		}

		levels := i.config.RiskLevels
		if trigger := definition.TriggerFor(triggerType); trigger != nil {
			if configured, ok := stringList(trigger.ThresholdValues["risk_levels"]); ok {
				levels = configured
			}
		}

		if !ShouldFireRisk(event.RiskLevel, levels) {
			return notFired(fmt.Sprintf("risk level %s is below the escalation levels", event.RiskLevel)), nil
		}

		return i.fire(ctx, event.BaseEvent, triggerType, definition, models.InstanceContext{
			Kind:        models.ContextKindRisk,
			TriggerType: triggerType,
			Risk: &models.RiskContext{
				RiskID:    event.RiskID,
				RiskLevel: strings.ToLower(event.RiskLevel),
				Category:  event.Category,
				Score:     event.Score,
			},
			Extra: extra(event.BaseEvent),
		})
	})
}

// OnChangeRequest always fires. The workflow type and approval path follow the authority
// rules; one active definition is kept per distinct path.
func (i *Integrator) OnChangeRequest(ctx context.Context, req ChangeRequest) (*Outcome, error) {
	triggerType := models.TriggerTypeManual

	return i.traced(ctx, "triggers.change_request", triggerType, req.BaseEvent, func(ctx context.Context) (*Outcome, error) {
		if req.ChangeType == "" || req.Priority == "" || req.CostImpact < 0 {
			return nil, fmt.Errorf("%w: change_type, priority and a non-negative cost_impact are required", ErrInvalidEvent)
		}

		change := models.ChangeCharacteristics{Priority: req.Priority, CostImpact: req.CostImpact, ChangeType: req.ChangeType}
		workflowType := authority.DetermineWorkflowType(change)
		path := authority.DetermineApprovalPath(change, workflowType)
		signature := pathSignature(workflowType, path)

		definition, err := i.materialize(ctx, signature,
			func(d *models.WorkflowDefinition) bool {
				return d.Metadata["path_signature"] == signature
			},
			func(ctx context.Context) (*models.WorkflowDefinition, error) {
				definition := authority.PathDefinition(
					fmt.Sprintf("%s change approval", strings.ToLower(string(workflowType))), workflowType, path)
				definition.CreatedBy = engine.SystemActor
				definition.Metadata["path_signature"] = signature

				return i.definitions.Create(ctx, definition)
			})
		if err != nil {
			return nil, err
		}

		return i.fire(ctx, req.BaseEvent, triggerType, definition, models.InstanceContext{
			Kind:        models.ContextKindChange,
			TriggerType: triggerType,
			Change: &models.ChangeContext{
				ChangeType:   req.ChangeType,
				Priority:     req.Priority,
				CostImpact:   req.CostImpact,
				WorkflowType: workflowType,
			},
			Extra: extra(req.BaseEvent),
		})
	})
}

// Register subscribes the integrator to the inbound domain events. Events the engine
// refuses are logged and acknowledged; infrastructure failures are returned for redelivery.
func (i *Integrator) Register(bus eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.BudgetChangedEvent: func(ctx context.Context, event any) error {
			e, ok := event.(*events.BudgetChanged)
			if !ok {
				return fmt.Errorf("%w: unexpected %T", ErrInvalidEvent, event)
			}

			return i.settle(ctx, events.BudgetChangedEvent, e.BaseEvent)(i.OnBudgetChange(ctx, *e))
		},
		events.MilestoneUpdatedEvent: func(ctx context.Context, event any) error {
			e, ok := event.(*events.MilestoneUpdated)
			if !ok {
				return fmt.Errorf("%w: unexpected %T", ErrInvalidEvent, event)
			}

			return i.settle(ctx, events.MilestoneUpdatedEvent, e.BaseEvent)(i.OnMilestoneUpdate(ctx, *e))
		},
		events.ResourceAllocatedEvent: func(ctx context.Context, event any) error {
			e, ok := event.(*events.ResourceAllocated)
			if !ok {
				return fmt.Errorf("%w: unexpected %T", ErrInvalidEvent, event)
			}

			return i.settle(ctx, events.ResourceAllocatedEvent, e.BaseEvent)(i.OnResourceAllocation(ctx, *e))
		},
		events.RiskEscalatedEvent: func(ctx context.Context, event any) error {
			e, ok := event.(*events.RiskEscalated)
			if !ok {
				return fmt.Errorf("%w: unexpected %T", ErrInvalidEvent, event)
			}

			return i.settle(ctx, events.RiskEscalatedEvent, e.BaseEvent)(i.OnRiskEvent(ctx, *e))
		},
	}

	for eventType, handler := range handlers {
		err := bus.Handle(eventType, handler)
		if err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	return nil
}

func (i *Integrator) settle(ctx context.Context, eventType events.EventType, base events.BaseEvent) func(*Outcome, error) error {
	return func(outcome *Outcome, err error) error {
		if err == nil {
			if !outcome.Fired {
				i.logger.DebugContext(ctx, "Event did not fire",
					"event_type", eventType,
					"event_id", base.ID,
					"reason", outcome.Reason)
			}

			return nil
		}

		if errors.Is(err, ErrInvalidEvent) ||
			engine.IsValidationError(err) ||
			engine.IsPermissionError(err) ||
			engine.IsStateError(err) {
			i.logger.WarnContext(ctx, "Dropping refused event",
				"event_type", eventType,
				"event_id", base.ID,
				"error", err)

			return nil
		}

		return err
	}
}

func (i *Integrator) unbound(ctx context.Context, triggerType models.TriggerType, err error) (*Outcome, error) {
	if err != nil {
		return nil, err
	}

	i.logger.WarnContext(ctx, "No workflow bound to trigger type", "trigger_type", triggerType)

	return notFired(fmt.Sprintf("%v: %s", ErrNoBinding, triggerType)), nil
}

func thresholdValue(definition *models.WorkflowDefinition, triggerType models.TriggerType, key string) (float64, bool) {
	trigger := definition.TriggerFor(triggerType)
	if trigger == nil {
		return 0, false
	}

	raw, ok := trigger.ThresholdValues[key]
	if !ok {
		return 0, false
	}

	return template.ToFiniteFloat(raw)
}

func stringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return slices.Clone(v), true
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}

func pathSignature(workflowType models.WorkflowType, path []models.ApprovalPathStep) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, string(workflowType))

	for _, step := range path {
		dependsOn := 0
		if step.DependsOn != nil {
			dependsOn = *step.DependsOn
		}

		parts = append(parts, fmt.Sprintf("%d:%s:%t:%d:%d", step.StepNumber, step.ApproverRole, step.IsRequired, dependsOn, step.TimeoutHours))
	}

	return strings.Join(parts, "|")
}
