package templates

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/template"
	"github.com/google/uuid"
)

const (
	minTimeoutHours = 1
	maxTimeoutHours = 8760
	maxNameLength   = 255
)

// Customizations adjust a template at instantiation. Steps is keyed by the template step
// order, then by field name.
type Customizations struct {
	Steps         map[int]map[string]any                      `json:"steps,omitempty"`
	ExcludedSteps []int                                       `json:"excluded_steps,omitempty"`
	Triggers      map[models.TriggerType]TriggerCustomization `json:"triggers,omitempty"`
	Metadata      map[string]any                              `json:"metadata,omitempty"`
}

// TriggerCustomization is merged into the template trigger of the same type.
type TriggerCustomization struct {
	ThresholdValues map[string]any `json:"threshold_values,omitempty"`
	Conditions      map[string]any `json:"conditions,omitempty"`
}

// InstantiateRequest names the template and the optional overrides.
type InstantiateRequest struct {
	Name           string          `json:"name,omitempty"`
	Customizations *Customizations `json:"customizations,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
}

// CustomizationResult reports customization problems. Errors make instantiation fail;
// warnings name customizations that are ignored.
type CustomizationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Instantiate builds a draft definition from a copy of the template. Non allow-listed
// fields are ignored with a warning; out-of-bounds values fail with ErrInvalidCustomization.
func (r *Registry) Instantiate(templateType Type, req InstantiateRequest) (*models.WorkflowDefinition, error) {
	tmpl, err := r.Get(templateType)
	if err != nil {
		return nil, err
	}

	custom := req.Customizations
	if custom == nil {
		custom = &Customizations{}
	}

	result := check(tmpl, req.Name, custom)
	for _, warning := range result.Warnings {
		r.logger.Warn("Ignoring template customization", "template_type", templateType, "warning", warning)
	}

	if !result.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCustomization, result.Errors)
	}

	definition := tmpl.Definition

	for order, fields := range custom.Steps {
		step := definition.StepByOrder(order)
		if step == nil {
			continue
		}

		names := make([]string, 0, len(fields))
		for field := range fields {
			names = append(names, field)
		}

		sort.Strings(names)

		for _, field := range names {
			if tmpl.Allows(field) {
				apply(step, field, fields[field])
			}
		}
	}

	definition.Steps = exclude(definition.SortedSteps(), custom.ExcludedSteps)

	err = mergeTriggers(definition, custom.Triggers)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	definition.ID = uuid.NewString()
	definition.Status = models.DefinitionStatusDraft
	definition.Version = 1
	definition.CreatedBy = req.CreatedBy
	definition.CreatedAt = now
	definition.UpdatedAt = now

	if req.Name != "" {
		definition.Name = req.Name
	}

	if definition.Metadata == nil {
		definition.Metadata = make(map[string]any)
	}

	for k, v := range custom.Metadata {
		definition.Metadata[k] = v
	}

	definition.Metadata["template_type"] = string(tmpl.Type)
	definition.Metadata["template_version"] = tmpl.Version

	r.logger.Info("Instantiated workflow template",
		"template_type", templateType,
		"definition_id", definition.ID,
		"steps", len(definition.Steps))

	return definition, nil
}

// ValidateCustomizations runs the allow-list and bounds checks of Instantiate without
// building anything.
func (r *Registry) ValidateCustomizations(templateType Type, req InstantiateRequest) (CustomizationResult, error) {
	tmpl, err := r.Get(templateType)
	if err != nil {
		return CustomizationResult{}, err
	}

	custom := req.Customizations
	if custom == nil {
		custom = &Customizations{}
	}

	return check(tmpl, req.Name, custom), nil
}

func check(tmpl *Template, name string, custom *Customizations) CustomizationResult {
	result := CustomizationResult{Errors: make([]string, 0), Warnings: make([]string, 0)}
	fail := func(format string, args ...any) { result.Errors = append(result.Errors, fmt.Sprintf(format, args...)) }
	warn := func(format string, args ...any) { result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...)) }

	if len(name) > maxNameLength {
		fail("name must be at most %d characters", maxNameLength)
	}

	orders := make([]int, 0, len(custom.Steps))
	for order := range custom.Steps {
		orders = append(orders, order)
	}

	sort.Ints(orders)

	for _, order := range orders {
		step := tmpl.Definition.StepByOrder(order)
		if step == nil {
			fail("step %d does not exist in template %s", order, tmpl.Type)

			continue
		}

		fields := make([]string, 0, len(custom.Steps[order]))
		for field := range custom.Steps[order] {
			fields = append(fields, field)
		}

		sort.Strings(fields)

		for _, field := range fields {
			if !tmpl.Allows(field) {
				warn("step %d: field %s is not customizable", order, field)

				continue
			}

			msg := checkField(field, custom.Steps[order][field])
			if msg != "" {
				fail("step %d: %s", order, msg)
			}
		}
	}

	remaining := 0

	for _, step := range tmpl.Definition.Steps {
		if slices.Contains(custom.ExcludedSteps, step.Order) {
			continue
		}

		remaining++
	}

	for _, order := range custom.ExcludedSteps {
		if tmpl.Definition.StepByOrder(order) == nil {
			fail("excluded step %d does not exist in template %s", order, tmpl.Type)
		}
	}

	if remaining == 0 {
		fail("excluding every step leaves an empty workflow")
	}

	for triggerType := range custom.Triggers {
		if tmpl.Definition.TriggerFor(triggerType) == nil {
			warn("trigger %s is not part of template %s", triggerType, tmpl.Type)
		}
	}

	result.Valid = len(result.Errors) == 0

	return result
}

func checkField(field string, value any) string {
	switch field {
	case FieldName:
		name, ok := value.(string)
		if !ok || name == "" || len(name) > maxNameLength {
			return fmt.Sprintf("name must be a non-empty string of at most %d characters", maxNameLength)
		}
	case FieldApprovers, FieldApproverRoles, FieldOptionalApprovers:
		if _, ok := toStrings(value); !ok {
			return field + " must be a list of strings"
		}
	case FieldApprovalType:
		approvalType, ok := value.(string)
		if !ok || !models.ApprovalType(approvalType).Valid() {
			return fmt.Sprintf("approval_type %v is not one of any, all, majority, quorum", value)
		}
	case FieldQuorumCount:
		count, ok := template.ToFloat(value)
		if !ok || count < 1 || count != float64(int(count)) {
			return "quorum_count must be a positive integer"
		}
	case FieldTimeoutHours:
		hours, ok := template.ToFloat(value)
		if !ok || hours < minTimeoutHours || hours > maxTimeoutHours || hours != float64(int(hours)) {
			return fmt.Sprintf("timeout_hours must be an integer between %d and %d", minTimeoutHours, maxTimeoutHours)
		}
	}

	return ""
}

// apply sets one checked field on the step.
func apply(step *models.Step, field string, value any) {
	switch field {
	case FieldName:
		step.Name, _ = value.(string)
	case FieldApprovers:
		step.Approvers, _ = toStrings(value)
	case FieldApproverRoles:
		step.ApproverRoles, _ = toStrings(value)
	case FieldOptionalApprovers:
		step.OptionalApprovers, _ = toStrings(value)
	case FieldApprovalType:
		approvalType, _ := value.(string)
		step.ApprovalType = models.ApprovalType(approvalType)

		if step.ApprovalType != models.ApprovalTypeQuorum {
			step.QuorumCount = nil
		}
	case FieldQuorumCount:
		count, _ := template.ToFloat(value)
		step.QuorumCount = models.IntPtr(int(count))
	case FieldTimeoutHours:
		hours, _ := template.ToFloat(value)
		step.TimeoutHours = models.IntPtr(int(hours))
	}
}

// exclude drops the excluded orders and renumbers the rest densely from 0. Dependencies
// follow their step; a dependency on an excluded step is dropped.
func exclude(steps []*models.Step, excluded []int) []*models.Step {
	renumbered := make(map[int]int, len(steps))
	kept := make([]*models.Step, 0, len(steps))

	for _, step := range steps {
		if slices.Contains(excluded, step.Order) {
			continue
		}

		renumbered[step.Order] = len(kept)
		kept = append(kept, step)
	}

	for _, step := range kept {
		step.Order = renumbered[step.Order]

		if step.DependsOnStep != nil {
			if order, ok := renumbered[*step.DependsOnStep]; ok {
				step.DependsOnStep = models.IntPtr(order)
			} else {
				step.DependsOnStep = nil
			}
		}
	}

	if len(kept) > 0 {
		kept[0].Parallel = false
	}

	return kept
}

// mergeTriggers merges customization maps into the template triggers; customization keys win.
func mergeTriggers(definition *models.WorkflowDefinition, custom map[models.TriggerType]TriggerCustomization) error {
	for triggerType, customization := range custom {
		trigger := definition.TriggerFor(triggerType)
		if trigger == nil {
			continue
		}

		if trigger.ThresholdValues == nil {
			trigger.ThresholdValues = make(map[string]any)
		}

		if trigger.Conditions == nil {
			trigger.Conditions = make(map[string]any)
		}

		err := mergo.Merge(&trigger.ThresholdValues, customization.ThresholdValues, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("failed to merge threshold values of %s: %w", triggerType, err)
		}

		err = mergo.Merge(&trigger.Conditions, customization.Conditions, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("failed to merge conditions of %s: %w", triggerType, err)
		}
	}

	return nil
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
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
