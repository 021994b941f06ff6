// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"testing"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty persistence backend. The backend is closed by the caller's cleanup.
type Factory func(t *testing.T) persistence.Persistence

// Run executes the backend contract against fresh backends from factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("definitions", func(t *testing.T) { testDefinitions(t, factory(t)) })
	t.Run("instances", func(t *testing.T) { testInstances(t, factory(t)) })
	t.Run("approvals", func(t *testing.T) { testApprovals(t, factory(t)) })
	t.Run("instance state", func(t *testing.T) { testInstanceState(t, factory(t)) })
	t.Run("health", func(t *testing.T) {
		require.NoError(t, factory(t).HealthCheck(t.Context()))
	})
}

func newDefinition(status models.DefinitionStatus) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:   uuid.NewString(),
		Name: "Budget approval",
		Steps: []*models.Step{
			{
				Order:         0,
				Type:          models.StepTypeApproval,
				Name:          "Review",
				ApproverRoles: []string{"project_manager"},
				ApprovalType:  models.ApprovalTypeQuorum,
				QuorumCount:   models.IntPtr(1),
				TimeoutHours:  models.IntPtr(24),
				Conditions: &models.Conditions{
					Rules: []models.Rule{{Field: "variancePercent", Operator: models.OperatorGte, Value: 10.0}},
				},
			},
		},
		Triggers: []*models.Trigger{
			{Type: models.TriggerTypeBudgetChange, ThresholdValues: map[string]any{"percentage": 10.0}},
		},
		Metadata: map[string]any{"category": "finance"},
		Status:   status,
		Version:  1,
	}
}

func testDefinitions(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DefinitionRepository()

	_, err := repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsDefinitionNotFound(err))

	active := newDefinition(models.DefinitionStatusActive)
	draft := newDefinition(models.DefinitionStatusDraft)

	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, draft))
	assert.False(t, active.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.Name, got.Name)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, []string{"project_manager"}, got.Steps[0].ApproverRoles)
	assert.Equal(t, 1, *got.Steps[0].QuorumCount)
	assert.Equal(t, models.OperatorGte, got.Steps[0].Conditions.Rules[0].Operator)
	assert.Equal(t, models.TriggerTypeBudgetChange, got.Triggers[0].Type)
	assert.InDelta(t, 10.0, got.Triggers[0].ThresholdValues["percentage"], 0.001)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	actives, err := repo.ListByStatus(ctx, models.DefinitionStatusActive)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, active.ID, actives[0].ID)

	active.Status = models.DefinitionStatusArchived
	require.NoError(t, repo.Save(ctx, active))

	actives, err = repo.ListByStatus(ctx, models.DefinitionStatusActive)
	require.NoError(t, err)
	assert.Empty(t, actives)
}

func newInstance(entityID string, status models.InstanceStatus, startedAt time.Time) *models.WorkflowInstance {
	return &models.WorkflowInstance{
		ID:                uuid.NewString(),
		DefinitionID:      uuid.NewString(),
		DefinitionVersion: 1,
		EntityType:        "project",
		EntityID:          entityID,
		Status:            status,
		Steps: []*models.StepState{
			{Order: 0, Outcome: models.StepOutcomePending, ActivatedAt: &startedAt},
		},
		Context: models.InstanceContext{
			Kind:        models.ContextKindBudget,
			TriggerType: models.TriggerTypeBudgetChange,
			Budget:      &models.BudgetContext{OldValue: 100000, NewValue: 116000, VariancePercent: 16},
		},
		InitiatedBy: "system",
		StartedAt:   startedAt,
	}
}

func testInstances(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.InstanceRepository()

	_, err := repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))

	base := time.Now().UTC().Truncate(time.Millisecond)
	first := newInstance("p-1", models.InstanceStatusInProgress, base)
	second := newInstance("p-1", models.InstanceStatusApproved, base.Add(time.Minute))
	other := newInstance("p-2", models.InstanceStatusInProgress, base.Add(2*time.Minute))

	for _, instance := range []*models.WorkflowInstance{second, first, other} {
		require.NoError(t, repo.Save(ctx, instance))
	}

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, got.Status)
	require.NotNil(t, got.Context.Budget)
	assert.InDelta(t, 16.0, got.Context.Budget.VariancePercent, 0.001)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, models.StepOutcomePending, got.Steps[0].Outcome)
	assert.True(t, base.Equal(got.StartedAt))

	inProgress, err := repo.ListByStatus(ctx, models.InstanceStatusInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 2)
	assert.Equal(t, first.ID, inProgress[0].ID)
	assert.Equal(t, other.ID, inProgress[1].ID)

	byEntity, err := repo.FindByEntity(ctx, "project", "p-1")
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, first.ID, byEntity[0].ID)
	assert.Equal(t, second.ID, byEntity[1].ID)

	now := time.Now().UTC()
	first.Status = models.InstanceStatusRejected
	first.CompletedAt = &now
	require.NoError(t, repo.Save(ctx, first))

	got, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusRejected, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func testApprovals(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.ApprovalRepository()
	instanceID := uuid.NewString()
	created := time.Now().UTC().Truncate(time.Millisecond)

	_, err := repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsApprovalNotFound(err))

	explicit := &models.Approval{
		ID: uuid.NewString(), InstanceID: instanceID, StepOrder: 1, ApproverID: "alice",
		Decision: models.DecisionPending, IsRequired: true, DependsOnStep: models.IntPtr(0), CreatedAt: created,
	}
	role := &models.Approval{
		ID: uuid.NewString(), InstanceID: instanceID, StepOrder: 0, ApproverRole: "finance_manager",
		Decision: models.DecisionPending, IsRequired: true, CreatedAt: created,
	}
	decided := &models.Approval{
		ID: uuid.NewString(), InstanceID: instanceID, StepOrder: 0, ApproverID: "alice",
		Decision: models.DecisionApproved, DecidedBy: "alice", DecisionAt: &created, IsRequired: true, CreatedAt: created,
	}
	foreign := &models.Approval{
		ID: uuid.NewString(), InstanceID: uuid.NewString(), StepOrder: 0, ApproverID: "bob",
		Decision: models.DecisionPending, IsRequired: false, CreatedAt: created,
	}

	require.NoError(t, repo.SaveAll(ctx, []*models.Approval{explicit, role, decided}))
	require.NoError(t, repo.Save(ctx, foreign))

	got, err := repo.GetByID(ctx, explicit.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ApproverID)
	require.NotNil(t, got.DependsOnStep)
	assert.Equal(t, 0, *got.DependsOnStep)

	byInstance, err := repo.ListByInstance(ctx, instanceID)
	require.NoError(t, err)
	require.Len(t, byInstance, 3)
	assert.Equal(t, 0, byInstance[0].StepOrder)
	assert.Equal(t, 1, byInstance[2].StepOrder)

	pending, err := repo.FindPendingByApprover(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, explicit.ID, pending[0].ID)

	byRole, err := repo.FindPendingByRole(ctx, []string{"finance_manager", "viewer"})
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Equal(t, role.ID, byRole[0].ID)

	none, err := repo.FindPendingByRole(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	role.Decision = models.DecisionRejected
	role.DecidedBy = "bob"
	role.Comments = "over budget"
	require.NoError(t, repo.Save(ctx, role))

	byRole, err = repo.FindPendingByRole(ctx, []string{"finance_manager"})
	require.NoError(t, err)
	assert.Empty(t, byRole)

	got, err = repo.GetByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRejected, got.Decision)
	assert.Equal(t, "over budget", got.Comments)
}

func testInstanceState(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	created := time.Now().UTC().Truncate(time.Millisecond)
	instance := newInstance("p-3", models.InstanceStatusInProgress, created)
	slot := &models.Approval{
		ID: uuid.NewString(), InstanceID: instance.ID, StepOrder: 0, ApproverID: "alice",
		Decision: models.DecisionPending, IsRequired: true, CreatedAt: created,
	}

	require.NoError(t, p.SaveInstanceState(ctx, instance, []*models.Approval{slot}))

	got, err := p.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, got.Status)

	approvals, err := p.ApprovalRepository().ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.DecisionPending, approvals[0].Decision)

	instance.Status = models.InstanceStatusApproved
	instance.Steps[0].Outcome = models.StepOutcomeSatisfied
	slot.Decision = models.DecisionApproved
	slot.DecidedBy = "alice"

	require.NoError(t, p.SaveInstanceState(ctx, instance, []*models.Approval{slot}))
	require.NoError(t, p.SaveInstanceState(ctx, instance, nil))

	got, err = p.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusApproved, got.Status)
	assert.Equal(t, models.StepOutcomeSatisfied, got.Steps[0].Outcome)

	decided, err := p.ApprovalRepository().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApproved, decided.Decision)
}
