// Package templates instantiates workflow definitions from named, versioned blueprints.
package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
)

type Type string

const (
	TypeBudgetApproval     Type = "budget_approval"
	TypeMilestoneApproval  Type = "milestone_approval"
	TypeResourceAllocation Type = "resource_allocation"
)

// Customizable step fields.
const (
	FieldName              = "name"
	FieldApprovers         = "approvers"
	FieldApproverRoles     = "approver_roles"
	FieldOptionalApprovers = "optional_approvers"
	FieldApprovalType      = "approval_type"
	FieldQuorumCount       = "quorum_count"
	FieldTimeoutHours      = "timeout_hours"
)

var (
	ErrTemplateNotFound      = errors.New("workflow template not found")
	ErrInvalidCustomization  = errors.New("invalid template customization")
	ErrTemplateAlreadyExists = errors.New("workflow template already registered")
)

// Template is a blueprint definition plus the step fields callers may customize.
type Template struct {
	Type               Type                       `json:"type"`
	Version            int                        `json:"version"`
	Description        string                     `json:"description"`
	CustomizableFields []string                   `json:"customizable_fields"`
	Definition         *models.WorkflowDefinition `json:"definition"`
}

// Allows reports whether field is in the allow-list.
func (t *Template) Allows(field string) bool {
	return slices.Contains(t.CustomizableFields, field)
}

// Registry holds templates by type. Stored templates are never handed out or mutated;
// every read works on a deep copy.
type Registry struct {
	mu        sync.RWMutex
	templates map[Type]*Template
	logger    *slog.Logger
}

// NewRegistry creates a registry preloaded with the built-in templates.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		templates: make(map[Type]*Template),
		logger:    logger.With("module", "templates"),
	}

	for _, template := range builtins() {
		r.templates[template.Type] = template
	}

	return r
}

// Register adds a template. A type can be registered once.
func (r *Registry) Register(template *Template) error {
	if template == nil || template.Type == "" || template.Definition == nil {
		return fmt.Errorf("%w: template needs a type and a definition", ErrInvalidCustomization)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[template.Type]; exists {
		return fmt.Errorf("%w: %s", ErrTemplateAlreadyExists, template.Type)
	}

	clone, err := cloneTemplate(template)
	if err != nil {
		return err
	}

	r.templates[template.Type] = clone
	r.logger.Info("Registered workflow template", "template_type", template.Type, "version", template.Version)

	return nil
}

// Get returns a copy of the template.
func (r *Registry) Get(templateType Type) (*Template, error) {
	r.mu.RLock()
	template, ok := r.templates[templateType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateType)
	}

	return cloneTemplate(template)
}

// List returns copies of every template ordered by type.
func (r *Registry) List() ([]*Template, error) {
	r.mu.RLock()
	types := make([]Type, 0, len(r.templates))

	for templateType := range r.templates {
		types = append(types, templateType)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	out := make([]*Template, 0, len(types))

	for _, templateType := range types {
		template, err := r.Get(templateType)
		if err != nil {
			return nil, err
		}

		out = append(out, template)
	}

	return out, nil
}

func cloneTemplate(template *Template) (*Template, error) {
	definition, err := template.Definition.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to copy template %s: %w", template.Type, err)
	}

	return &Template{
		Type:               template.Type,
		Version:            template.Version,
		Description:        template.Description,
		CustomizableFields: slices.Clone(template.CustomizableFields),
		Definition:         definition,
	}, nil
}
