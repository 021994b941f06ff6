package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/file"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence/persistencetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersistence(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		return file.NewPersistence("file://" + t.TempDir())
	})
}

func TestFilePersistence_HealthCheckMissingRoot(t *testing.T) {
	p := file.NewPersistence(filepath.Join(t.TempDir(), "missing"))

	err := p.HealthCheck(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilePersistence_CorruptRecord(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "instances"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "instances", "broken.json"), []byte("{"), 0600))

	p := file.NewPersistence(root)

	_, err := p.InstanceRepository().GetByID(t.Context(), "broken")
	require.Error(t, err)
	assert.False(t, persistence.IsNotFound(err))
}

func stateRecords() (*models.WorkflowInstance, *models.Approval) {
	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		ID:           uuid.NewString(),
		DefinitionID: uuid.NewString(),
		EntityType:   "project",
		EntityID:     "p-1",
		Status:       models.InstanceStatusInProgress,
		Steps:        []*models.StepState{{Order: 0, Outcome: models.StepOutcomePending, ActivatedAt: &now}},
		StartedAt:    now,
	}
	approval := &models.Approval{
		ID: uuid.NewString(), InstanceID: instance.ID, StepOrder: 0, ApproverID: "alice",
		Decision: models.DecisionPending, IsRequired: true, CreatedAt: now,
	}

	return instance, approval
}

// blockWrite makes the next write of the record fail by occupying its temporary file path.
func blockWrite(t *testing.T, root, dir, id string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, dir, "."+id+".json.tmp"), 0750))
}

func TestFilePersistence_SaveInstanceStateInstanceWriteFails(t *testing.T) {
	root := t.TempDir()
	p := file.NewPersistence(root)
	instance, approval := stateRecords()

	blockWrite(t, root, "instances", instance.ID)

	err := p.SaveInstanceState(t.Context(), instance, []*models.Approval{approval})
	require.Error(t, err)

	_, err = p.InstanceRepository().GetByID(t.Context(), instance.ID)
	assert.True(t, persistence.IsInstanceNotFound(err))

	approvals, err := p.ApprovalRepository().ListByInstance(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Empty(t, approvals)
}

func TestFilePersistence_SaveInstanceStateRestoresOnApprovalFailure(t *testing.T) {
	root := t.TempDir()
	p := file.NewPersistence(root)
	instance, approval := stateRecords()

	require.NoError(t, p.SaveInstanceState(t.Context(), instance, []*models.Approval{approval}))

	next := &models.Approval{
		ID: uuid.NewString(), InstanceID: instance.ID, StepOrder: 1, ApproverID: "bob",
		Decision: models.DecisionPending, IsRequired: true, CreatedAt: time.Now().UTC(),
	}
	blockWrite(t, root, "approvals", next.ID)

	instance.Status = models.InstanceStatusApproved
	approval.Decision = models.DecisionApproved

	err := p.SaveInstanceState(t.Context(), instance, []*models.Approval{approval, next})
	require.Error(t, err)

	stored, err := p.InstanceRepository().GetByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, stored.Status)

	approvals, err := p.ApprovalRepository().ListByInstance(t.Context(), instance.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, approval.ID, approvals[0].ID)
	assert.Equal(t, models.DecisionPending, approvals[0].Decision)
}

func TestFilePersistence_SaveInstanceStateRemovesNewInstanceOnFailure(t *testing.T) {
	root := t.TempDir()
	p := file.NewPersistence(root)
	instance, approval := stateRecords()

	blockWrite(t, root, "approvals", approval.ID)

	err := p.SaveInstanceState(t.Context(), instance, []*models.Approval{approval})
	require.Error(t, err)

	_, err = p.InstanceRepository().GetByID(t.Context(), instance.ID)
	assert.True(t, persistence.IsInstanceNotFound(err))
}
