package services

import (
	"testing"

	"github.com/Stefan/orka-ppm-sub007/pkg/log"
	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/file"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
	"github.com/Stefan/orka-ppm-sub007/pkg/testutil"
	"github.com/Stefan/orka-ppm-sub007/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDefinitions(t *testing.T) *Definitions {
	t.Helper()

	return NewDefinitions(
		file.NewPersistence(t.TempDir()),
		validation.NewValidator(testutil.NewTestDirectory(), log.Discard()),
		templates.NewRegistry(log.Discard()),
		log.Discard(),
	)
}

func draftDefinition(approvers ...string) *models.WorkflowDefinition {
	definition := testutil.CreateTestDefinition(testutil.CreateTestStep(0, testutil.WithApprovers(approvers...)))
	definition.ID = ""
	definition.Status = ""
	definition.Version = 0

	return definition
}

func TestDefinitions_HealthCheck(t *testing.T) {
	service := newTestDefinitions(t)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestDefinitions_Create(t *testing.T) {
	service := newTestDefinitions(t)

	created, err := service.Create(t.Context(), draftDefinition("alice"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.DefinitionStatusDraft, created.Status)
	assert.Equal(t, 1, created.Version)

	stored, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, stored.Name)

	invalid := draftDefinition("alice")
	invalid.Name = ""
	invalid.Steps[0].Order = 3

	_, err = service.Create(t.Context(), invalid)
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.True(t, IsValidationError(err))
	assert.Len(t, Details(err), 2)

	_, err = service.Create(t.Context(), nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDefinitions_UpdateDraftOnly(t *testing.T) {
	service := newTestDefinitions(t)

	created, err := service.Create(t.Context(), draftDefinition("alice"))
	require.NoError(t, err)

	change := draftDefinition("bob")
	change.Name = "Renamed"

	updated, err := service.Update(t.Context(), created.ID, change)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	_, err = service.Update(t.Context(), created.ID, draftDefinition("alice"))
	require.ErrorIs(t, err, ErrCannotModifyActive)
	assert.True(t, IsConflictError(err))

	_, err = service.Update(t.Context(), "missing", draftDefinition("alice"))
	assert.True(t, IsNotFoundError(err))
}

func TestDefinitions_ActivateChecksApprovers(t *testing.T) {
	service := newTestDefinitions(t)

	created, err := service.Create(t.Context(), draftDefinition("nobody"))
	require.NoError(t, err)

	_, err = service.Activate(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, Details(err)[0], "approver nobody does not exist")

	stored, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusDraft, stored.Status)
}

func TestDefinitions_StatusLifecycle(t *testing.T) {
	service := newTestDefinitions(t)

	created, err := service.Create(t.Context(), draftDefinition("alice"))
	require.NoError(t, err)

	_, err = service.Suspend(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrIllegalStatusChange)

	active, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusActive, active.Status)

	suspended, err := service.Suspend(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusSuspended, suspended.Status)

	reactivated, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusActive, reactivated.Status)

	archived, err := service.Archive(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusArchived, archived.Status)

	_, err = service.Activate(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrIllegalStatusChange)

	_, err = service.Archive(t.Context(), created.ID)
	require.ErrorIs(t, err, ErrIllegalStatusChange)

	status := models.DefinitionStatusArchived
	list, err := service.List(t.Context(), &status)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	bogus := models.DefinitionStatus("retired")
	_, err = service.List(t.Context(), &bogus)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDefinitions_NewVersion(t *testing.T) {
	service := newTestDefinitions(t)

	created, err := service.Create(t.Context(), draftDefinition("alice"))
	require.NoError(t, err)

	_, err = service.NewVersion(t.Context(), created.ID, "bob")
	require.ErrorIs(t, err, ErrIllegalStatusChange)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	draft, err := service.NewVersion(t.Context(), created.ID, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, draft.ID)
	assert.Equal(t, models.DefinitionStatusDraft, draft.Status)
	assert.Equal(t, 2, draft.Version)
	assert.Equal(t, "bob", draft.CreatedBy)
	assert.Equal(t, created.ID, draft.Metadata["previous_version_id"])

	source, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusActive, source.Status)
	assert.Equal(t, 1, source.Version)
}

func TestDefinitions_FromTemplate(t *testing.T) {
	service := newTestDefinitions(t)

	definition, err := service.FromTemplate(t.Context(), templates.TypeBudgetApproval, templates.InstantiateRequest{
		Name:      "Portfolio budget approval",
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusDraft, definition.Status)

	active, err := service.Activate(t.Context(), definition.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefinitionStatusActive, active.Status)

	_, err = service.FromTemplate(t.Context(), "unknown", templates.InstantiateRequest{})
	assert.True(t, IsNotFoundError(err))

	_, err = service.FromTemplate(t.Context(), templates.TypeBudgetApproval, templates.InstantiateRequest{
		Customizations: &templates.Customizations{
			Steps: map[int]map[string]any{0: {templates.FieldTimeoutHours: 0}},
		},
	})
	assert.True(t, IsValidationError(err))

	_, err = service.FetchByID(t.Context(), "missing")
	assert.True(t, persistence.IsDefinitionNotFound(err))
}
