// Package triggers turns portfolio domain events into workflow instances. Each event type
// has a pure firing rule; a firing event is deduplicated by entity, trigger type and
// idempotency token before an instance is created.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Stefan/orka-ppm-sub007/pkg/engine"
	"github.com/Stefan/orka-ppm-sub007/pkg/events"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/otelhelper"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const boundTriggerKey = "bound_trigger"

var (
	ErrNoBinding    = errors.New("no workflow bound to trigger type")
	ErrInvalidEvent = errors.New("invalid trigger event")
)

// InstanceCreator starts workflow instances.
type InstanceCreator interface {
	CreateInstance(ctx context.Context, req engine.CreateInstanceRequest) (*models.WorkflowInstance, error)
}

// DefinitionSource looks up and materializes the definitions events are bound to.
type DefinitionSource interface {
	List(ctx context.Context, status *models.DefinitionStatus) ([]*models.WorkflowDefinition, error)
	FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error)
	FromTemplate(ctx context.Context, templateType templates.Type, req templates.InstantiateRequest) (*models.WorkflowDefinition, error)
	Activate(ctx context.Context, id string) (*models.WorkflowDefinition, error)
}

// Binding names the workflow a trigger type starts: an existing definition, or a template
// that is materialized into an active definition on first use.
type Binding struct {
	DefinitionID string         `json:"definition_id,omitempty" yaml:"definition_id,omitempty"`
	Template     templates.Type `json:"template,omitempty"      yaml:"template,omitempty"`
}

type Config struct {
	BudgetThresholdPercent   float64
	ResourceThresholdPercent float64
	GatedMilestoneTypes      []string
	RiskLevels               []string
	Bindings                 map[models.TriggerType]Binding
}

func DefaultConfig() Config {
	return Config{
		BudgetThresholdPercent:   10,
		ResourceThresholdPercent: 50,
		GatedMilestoneTypes:      []string{"phase_gate", "go_live"},
		RiskLevels:               []string{"high", "critical"},
		Bindings: map[models.TriggerType]Binding{
			models.TriggerTypeBudgetChange:       {Template: templates.TypeBudgetApproval},
			models.TriggerTypeMilestoneUpdate:    {Template: templates.TypeMilestoneApproval},
			models.TriggerTypeResourceAllocation: {Template: templates.TypeResourceAllocation},
		},
	}
}

// Outcome reports what an event did. Reason explains why nothing fired.
type Outcome struct {
	Fired     bool                     `json:"fired"`
	Duplicate bool                     `json:"duplicate,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	Instance  *models.WorkflowInstance `json:"instance,omitempty"`
}

type Integrator struct {
	config      Config
	creator     InstanceCreator
	definitions DefinitionSource
	dedup       DedupStore
	tracer      trace.Tracer
	logger      *slog.Logger

	mu           sync.Mutex
	materialized map[string]string
}

func NewIntegrator(
	config Config,
	creator InstanceCreator,
	definitions DefinitionSource,
	dedup DedupStore,
	logger *slog.Logger,
) *Integrator {
	if dedup == nil {
		dedup = NewMemoryDedupStore(DefaultDedupTTL)
	}

	return &Integrator{
		config:       config,
		creator:      creator,
		definitions:  definitions,
		dedup:        dedup,
		tracer:       otelhelper.Tracer(),
		logger:       logger.With("module", "triggers"),
		materialized: make(map[string]string),
	}
}

func checkEvent(base events.BaseEvent) error {
	if base.EntityType == "" || base.EntityID == "" {
		return fmt.Errorf("%w: entity_type and entity_id are required", ErrInvalidEvent)
	}

	if base.DedupToken() == "" {
		return fmt.Errorf("%w: id or idempotency_token is required", ErrInvalidEvent)
	}

	return nil
}

// bound resolves the definition for the trigger type. ok is false when nothing is bound.
func (i *Integrator) bound(ctx context.Context, triggerType models.TriggerType) (*models.WorkflowDefinition, bool, error) {
	binding, exists := i.config.Bindings[triggerType]
	if !exists || (binding.DefinitionID == "" && binding.Template == "") {
		return nil, false, nil
	}

	if binding.DefinitionID != "" {
		definition, err := i.definitions.FetchByID(ctx, binding.DefinitionID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load definition bound to %s: %w", triggerType, err)
		}

		return definition, true, nil
	}

	key := string(triggerType) + "/" + string(binding.Template)

	definition, err := i.materialize(ctx, key,
		func(d *models.WorkflowDefinition) bool {
			return d.Metadata[boundTriggerKey] == string(triggerType) &&
				d.Metadata["template_type"] == string(binding.Template)
		},
		func(ctx context.Context) (*models.WorkflowDefinition, error) {
			return i.definitions.FromTemplate(ctx, binding.Template, templates.InstantiateRequest{
				CreatedBy: engine.SystemActor,
				Customizations: &templates.Customizations{
					Metadata: map[string]any{boundTriggerKey: string(triggerType)},
				},
			})
		})
	if err != nil {
		return nil, false, err
	}

	return definition, true, nil
}

// materialize returns the active definition cached under key. On first use it reuses an
// active definition matching find, or builds and activates a new one. It runs at most once
// per key at a time.
func (i *Integrator) materialize(
	ctx context.Context,
	key string,
	find func(*models.WorkflowDefinition) bool,
	build func(context.Context) (*models.WorkflowDefinition, error),
) (*models.WorkflowDefinition, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if id, ok := i.materialized[key]; ok {
		definition, err := i.definitions.FetchByID(ctx, id)
		if err == nil && definition.Status == models.DefinitionStatusActive {
			return definition, nil
		}

		delete(i.materialized, key)
	}

	active := models.DefinitionStatusActive

	existing, err := i.definitions.List(ctx, &active)
	if err != nil {
		return nil, fmt.Errorf("failed to list active definitions: %w", err)
	}

	for _, definition := range existing {
		if find(definition) {
			i.materialized[key] = definition.ID

			return definition, nil
		}
	}

	draft, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build definition for %s: %w", key, err)
	}

	definition, err := i.definitions.Activate(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate definition for %s: %w", key, err)
	}

	i.materialized[key] = definition.ID

	i.logger.InfoContext(ctx, "Materialized trigger definition",
		"binding", key,
		"definition_id", definition.ID)

	return definition, nil
}

// fire claims the event and starts an instance of the definition. A claim is released
// again when the instance cannot be created, so redelivery can retry.
func (i *Integrator) fire(
	ctx context.Context,
	base events.BaseEvent,
	triggerType models.TriggerType,
	definition *models.WorkflowDefinition,
	instanceContext models.InstanceContext,
) (*Outcome, error) {
	key := DedupKey(base.EntityType, base.EntityID, triggerType, base.DedupToken())

	claimed, err := i.dedup.Claim(ctx, key)
	if err != nil {
		return nil, err
	}

	if !claimed {
		i.logger.InfoContext(ctx, "Ignoring replayed trigger event",
			"trigger_type", triggerType,
			"entity_id", base.EntityID,
			"event_id", base.ID)

		return &Outcome{Duplicate: true, Reason: "event already processed"}, nil
	}

	initiatedBy := base.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = engine.SystemActor
	}

	instance, err := i.creator.CreateInstance(ctx, engine.CreateInstanceRequest{
		DefinitionID: definition.ID,
		Entity:       models.Entity{Type: base.EntityType, ID: base.EntityID},
		Context:      instanceContext,
		InitiatedBy:  initiatedBy,
	})
	if err != nil {
		releaseErr := i.dedup.Release(ctx, key)
		if releaseErr != nil {
			i.logger.ErrorContext(ctx, "Failed to release trigger key", "key", key, "error", releaseErr)
		}

		return nil, err
	}

	i.logger.InfoContext(ctx, "Trigger fired",
		"trigger_type", triggerType,
		"entity_id", base.EntityID,
		"event_id", base.ID,
		"instance_id", instance.ID)

	return &Outcome{Fired: true, Instance: instance}, nil
}

// extra carries the event identity and metadata into the instance context.
func extra(base events.BaseEvent) map[string]any {
	values := make(map[string]any, len(base.Metadata)+2)

	for k, v := range base.Metadata {
		values[k] = v
	}

	values["eventId"] = base.ID
	values["idempotencyToken"] = base.DedupToken()

	return values
}

func (i *Integrator) startSpan(ctx context.Context, name string, triggerType models.TriggerType, base events.BaseEvent) (context.Context, trace.Span) {
	return otelhelper.StartSpan(ctx, i.tracer, name,
		attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
		attribute.String(otelhelper.EventIDKey, base.ID),
		attribute.String(otelhelper.EntityTypeKey, base.EntityType),
		attribute.String(otelhelper.EntityIDKey, base.EntityID))
}

// traced checks the event and runs fn inside a span.
func (i *Integrator) traced(
	ctx context.Context,
	name string,
	triggerType models.TriggerType,
	base events.BaseEvent,
	fn func(context.Context) (*Outcome, error),
) (*Outcome, error) {
	ctx, span := i.startSpan(ctx, name, triggerType, base)
	defer span.End()

	err := checkEvent(base)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	outcome, err := fn(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Bool(otelhelper.TriggerFiredKey, outcome.Fired))

	return outcome, nil
}

func notFired(reason string) *Outcome {
	return &Outcome{Reason: reason}
}
