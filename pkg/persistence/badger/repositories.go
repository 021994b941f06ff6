package badger

import (
	"context"
	"slices"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
)

type DefinitionRepository struct {
	kv *kvStore
}

func (r *DefinitionRepository) GetAll(_ context.Context) ([]*models.WorkflowDefinition, error) {
	definitions, err := collect(r.kv, definitionPrefix, all[models.WorkflowDefinition])
	if err != nil {
		return nil, persistence.NewRecordError("GetAll", "definition", "", err)
	}

	persistence.SortDefinitions(definitions)

	return definitions, nil
}

func (r *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	definition := &models.WorkflowDefinition{}

	found, err := r.kv.get(definitionPrefix+id, definition)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "definition", id, err)
	}

	if !found {
		return nil, persistence.NewRecordError("GetByID", "definition", id, persistence.ErrDefinitionNotFound)
	}

	return definition, nil
}

func (r *DefinitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	err := r.kv.put(map[string]any{definitionPrefix + definition.ID: definition})
	if err != nil {
		return persistence.NewRecordError("Save", "definition", definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) ListByStatus(_ context.Context, status models.DefinitionStatus) ([]*models.WorkflowDefinition, error) {
	definitions, err := collect(r.kv, definitionPrefix, func(d *models.WorkflowDefinition) bool {
		return d.Status == status
	})
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "definition", "", err)
	}

	persistence.SortDefinitions(definitions)

	return definitions, nil
}

type InstanceRepository struct {
	kv *kvStore
}

func (r *InstanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	instance := &models.WorkflowInstance{}

	found, err := r.kv.get(instancePrefix+id, instance)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "instance", id, err)
	}

	if !found {
		return nil, persistence.NewRecordError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
	}

	return instance, nil
}

func (r *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	err := r.kv.put(map[string]any{instancePrefix + instance.ID: instance})
	if err != nil {
		return persistence.NewRecordError("Save", "instance", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) ListByStatus(_ context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	instances, err := collect(r.kv, instancePrefix, func(i *models.WorkflowInstance) bool {
		return i.Status == status
	})
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "instance", "", err)
	}

	persistence.SortInstances(instances)

	return instances, nil
}

func (r *InstanceRepository) FindByEntity(_ context.Context, entityType, entityID string) ([]*models.WorkflowInstance, error) {
	instances, err := collect(r.kv, instancePrefix, func(i *models.WorkflowInstance) bool {
		return i.EntityType == entityType && i.EntityID == entityID
	})
	if err != nil {
		return nil, persistence.NewRecordError("FindByEntity", "instance", "", err)
	}

	persistence.SortInstances(instances)

	return instances, nil
}

type ApprovalRepository struct {
	kv *kvStore
}

func (r *ApprovalRepository) GetByID(_ context.Context, id string) (*models.Approval, error) {
	approval := &models.Approval{}

	found, err := r.kv.get(approvalPrefix+id, approval)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "approval", id, err)
	}

	if !found {
		return nil, persistence.NewRecordError("GetByID", "approval", id, persistence.ErrApprovalNotFound)
	}

	return approval, nil
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	return r.SaveAll(ctx, []*models.Approval{approval})
}

func (r *ApprovalRepository) SaveAll(_ context.Context, approvals []*models.Approval) error {
	entries := make(map[string]any, len(approvals))
	for _, approval := range approvals {
		entries[approvalPrefix+approval.ID] = approval
	}

	err := r.kv.put(entries)
	if err != nil {
		return persistence.NewRecordError("SaveAll", "approval", "", err)
	}

	return nil
}

func (r *ApprovalRepository) ListByInstance(_ context.Context, instanceID string) ([]*models.Approval, error) {
	return r.find("ListByInstance", func(a *models.Approval) bool {
		return a.InstanceID == instanceID
	})
}

func (r *ApprovalRepository) FindPendingByApprover(_ context.Context, userID string) ([]*models.Approval, error) {
	return r.find("FindPendingByApprover", func(a *models.Approval) bool {
		return a.Decision == models.DecisionPending && a.ApproverID == userID
	})
}

func (r *ApprovalRepository) FindPendingByRole(_ context.Context, roles []string) ([]*models.Approval, error) {
	return r.find("FindPendingByRole", func(a *models.Approval) bool {
		return a.Decision == models.DecisionPending && a.RoleBased() && slices.Contains(roles, a.ApproverRole)
	})
}

func (r *ApprovalRepository) find(op string, keep func(*models.Approval) bool) ([]*models.Approval, error) {
	approvals, err := collect(r.kv, approvalPrefix, keep)
	if err != nil {
		return nil, persistence.NewRecordError(op, "approval", "", err)
	}

	persistence.SortApprovals(approvals)

	return approvals, nil
}
