package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/validation"
	"github.com/google/uuid"
)

// Definitions manages the lifecycle of workflow definitions:
// draft -> active <-> suspended, and any status -> archived.
type Definitions struct {
	persistence persistence.Persistence
	validator   *validation.Validator
	templates   *templates.Registry
	logger      *slog.Logger
	now         func() time.Time
}

// NewDefinitions creates a new definition lifecycle service.
func NewDefinitions(
	persistence persistence.Persistence,
	validator *validation.Validator,
	registry *templates.Registry,
	logger *slog.Logger,
) *Definitions {
	return &Definitions{
		persistence: persistence,
		validator:   validator,
		templates:   registry,
		logger:      logger.With("module", "definitions"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (d *Definitions) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Validate runs the definition validator. Approver existence is checked against the RBAC
// directory only when validateApprovers is set.
func (d *Definitions) Validate(ctx context.Context, definition *models.WorkflowDefinition, validateApprovers bool) (validation.Result, error) {
	result, err := d.validator.Validate(ctx, definition, validateApprovers)
	if err != nil {
		return validation.Result{}, fmt.Errorf("failed to validate definition: %w", err)
	}

	return result, nil
}

// List returns definitions, optionally filtered by status.
func (d *Definitions) List(ctx context.Context, status *models.DefinitionStatus) ([]*models.WorkflowDefinition, error) {
	repo := d.persistence.DefinitionRepository()

	if status == nil {
		return repo.GetAll(ctx)
	}

	switch *status {
	case models.DefinitionStatusDraft, models.DefinitionStatusActive,
		models.DefinitionStatusSuspended, models.DefinitionStatusArchived:
	default:
		return nil, NewValidationError("List", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *status), nil, ErrInvalidStatus)
	}

	return repo.ListByStatus(ctx, *status)
}

// FetchByID retrieves a definition by its ID.
func (d *Definitions) FetchByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return d.persistence.DefinitionRepository().GetByID(ctx, id)
}

// Create stores a new draft definition at version 1. Structure is validated; approvers are
// checked on activation.
func (d *Definitions) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, NewValidationError("Create", "DEFINITION_REQUIRED", "workflow definition is required", nil, ErrInvalidRequest)
	}

	now := d.now()
	definition.ID = uuid.New().String()
	definition.Status = models.DefinitionStatusDraft
	definition.Version = 1
	definition.CreatedAt = now
	definition.UpdatedAt = now

	err := d.check(ctx, "Create", definition, false)
	if err != nil {
		return nil, err
	}

	err = d.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	d.logger.InfoContext(ctx, "Created workflow definition", "definition_id", definition.ID, "name", definition.Name)

	return definition, nil
}

// Update replaces the content of a draft definition and bumps its version.
func (d *Definitions) Update(
	ctx context.Context,
	definitionID string,
	definition *models.WorkflowDefinition,
) (*models.WorkflowDefinition, error) {
	if definition == nil {
		return nil, NewValidationError("Update", "DEFINITION_REQUIRED", "workflow definition is required", nil, ErrInvalidRequest)
	}

	existing, err := d.FetchByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	if existing.Status != models.DefinitionStatusDraft {
		return nil, &ServiceError{
			Op:      "Update",
			Code:    "DEFINITION_NOT_DRAFT",
			Message: fmt.Sprintf("definition %s is %s", definitionID, existing.Status),
			Err:     ErrCannotModifyActive,
		}
	}

	definition.ID = definitionID
	definition.Status = models.DefinitionStatusDraft
	definition.Version = existing.Version + 1
	definition.CreatedBy = existing.CreatedBy
	definition.CreatedAt = existing.CreatedAt
	definition.UpdatedAt = d.now()

	err = d.check(ctx, "Update", definition, false)
	if err != nil {
		return nil, err
	}

	err = d.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to update definition: %w", err)
	}

	return definition, nil
}

// Activate makes a draft or suspended definition startable after a full validation
// including approver checks.
func (d *Definitions) Activate(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	definition, err := d.FetchByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	err = d.check(ctx, "Activate", definition, true)
	if err != nil {
		return nil, err
	}

	return d.transition(ctx, "Activate", definition, models.DefinitionStatusActive,
		models.DefinitionStatusDraft, models.DefinitionStatusSuspended)
}

// Suspend stops an active definition from starting new instances. Running instances are
// not affected.
func (d *Definitions) Suspend(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	definition, err := d.FetchByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	return d.transition(ctx, "Suspend", definition, models.DefinitionStatusSuspended, models.DefinitionStatusActive)
}

// Archive retires a definition for good.
func (d *Definitions) Archive(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	definition, err := d.FetchByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	return d.transition(ctx, "Archive", definition, models.DefinitionStatusArchived,
		models.DefinitionStatusDraft, models.DefinitionStatusActive, models.DefinitionStatusSuspended)
}

// NewVersion copies an active or suspended definition into a new draft with the next
// version number. The source stays untouched.
func (d *Definitions) NewVersion(ctx context.Context, definitionID, createdBy string) (*models.WorkflowDefinition, error) {
	source, err := d.FetchByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	if source.Status != models.DefinitionStatusActive && source.Status != models.DefinitionStatusSuspended {
		return nil, &ServiceError{
			Op:      "NewVersion",
			Code:    "DEFINITION_NOT_RELEASED",
			Message: fmt.Sprintf("cannot version a %s definition", source.Status),
			Err:     ErrIllegalStatusChange,
		}
	}

	draft, err := source.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to copy definition %s: %w", definitionID, err)
	}

	now := d.now()
	draft.ID = uuid.New().String()
	draft.Status = models.DefinitionStatusDraft
	draft.Version = source.Version + 1
	draft.CreatedBy = createdBy
	draft.CreatedAt = now
	draft.UpdatedAt = now

	if draft.Metadata == nil {
		draft.Metadata = make(map[string]any)
	}

	draft.Metadata["previous_version_id"] = source.ID

	err = d.persistence.DefinitionRepository().Save(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition version: %w", err)
	}

	d.logger.InfoContext(ctx, "Created definition version",
		"definition_id", draft.ID,
		"previous_version_id", source.ID,
		"version", draft.Version)

	return draft, nil
}

// FromTemplate instantiates a template and stores the result as a draft definition.
func (d *Definitions) FromTemplate(
	ctx context.Context,
	templateType templates.Type,
	req templates.InstantiateRequest,
) (*models.WorkflowDefinition, error) {
	definition, err := d.templates.Instantiate(templateType, req)
	if err != nil {
		return nil, err
	}

	err = d.check(ctx, "FromTemplate", definition, false)
	if err != nil {
		return nil, err
	}

	err = d.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition from template: %w", err)
	}

	d.logger.InfoContext(ctx, "Created definition from template",
		"definition_id", definition.ID,
		"template_type", templateType)

	return definition, nil
}

func (d *Definitions) check(ctx context.Context, op string, definition *models.WorkflowDefinition, validateApprovers bool) error {
	result, err := d.Validate(ctx, definition, validateApprovers)
	if err != nil {
		return err
	}

	if !result.Valid {
		return NewValidationError(op, "INVALID_DEFINITION", "workflow definition is invalid", result.Errors, ErrInvalidDefinition)
	}

	return nil
}

func (d *Definitions) transition(
	ctx context.Context,
	op string,
	definition *models.WorkflowDefinition,
	to models.DefinitionStatus,
	from ...models.DefinitionStatus,
) (*models.WorkflowDefinition, error) {
	if !slices.Contains(from, definition.Status) {
		return nil, &ServiceError{
			Op:      op,
			Code:    "ILLEGAL_STATUS_CHANGE",
			Message: fmt.Sprintf("cannot move definition %s from %s to %s", definition.ID, definition.Status, to),
			Err:     ErrIllegalStatusChange,
		}
	}

	previous := definition.Status
	definition.Status = to
	definition.UpdatedAt = d.now()

	err := d.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition status: %w", err)
	}

	d.logger.InfoContext(ctx, "Definition status changed",
		"definition_id", definition.ID,
		"from", previous,
		"to", to)

	return definition, nil
}
