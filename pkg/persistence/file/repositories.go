package file

import (
	"context"
	"slices"
	"time"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
)

// DefinitionRepository handles definition files under <root>/definitions.
type DefinitionRepository struct {
	store *store[models.WorkflowDefinition]
}

func (r *DefinitionRepository) GetAll(_ context.Context) ([]*models.WorkflowDefinition, error) {
	definitions, err := r.store.all()
	if err != nil {
		return nil, persistence.NewRecordError("GetAll", "definition", "", err)
	}

	persistence.SortDefinitions(definitions)

	return definitions, nil
}

func (r *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := r.store.get(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "definition", id, err)
	}

	if definition == nil {
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

	err := r.store.put(map[string]*models.WorkflowDefinition{definition.ID: definition})
	if err != nil {
		return persistence.NewRecordError("Save", "definition", definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) ListByStatus(_ context.Context, status models.DefinitionStatus) ([]*models.WorkflowDefinition, error) {
	definitions, err := r.store.filter(func(d *models.WorkflowDefinition) bool {
		return d.Status == status
	})
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "definition", "", err)
	}

	persistence.SortDefinitions(definitions)

	return definitions, nil
}

// InstanceRepository handles instance files under <root>/instances.
type InstanceRepository struct {
	store *store[models.WorkflowInstance]
}

func (r *InstanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	instance, err := r.store.get(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "instance", id, err)
	}

	if instance == nil {
		return nil, persistence.NewRecordError("GetByID", "instance", id, persistence.ErrInstanceNotFound)
	}

	return instance, nil
}

func (r *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()

	err := r.store.put(map[string]*models.WorkflowInstance{instance.ID: instance})
	if err != nil {
		return persistence.NewRecordError("Save", "instance", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) ListByStatus(_ context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	instances, err := r.store.filter(func(i *models.WorkflowInstance) bool {
		return i.Status == status
	})
	if err != nil {
		return nil, persistence.NewRecordError("ListByStatus", "instance", "", err)
	}

	persistence.SortInstances(instances)

	return instances, nil
}

func (r *InstanceRepository) FindByEntity(_ context.Context, entityType, entityID string) ([]*models.WorkflowInstance, error) {
	instances, err := r.store.filter(func(i *models.WorkflowInstance) bool {
		return i.EntityType == entityType && i.EntityID == entityID
	})
	if err != nil {
		return nil, persistence.NewRecordError("FindByEntity", "instance", "", err)
	}

	persistence.SortInstances(instances)

	return instances, nil
}

// ApprovalRepository handles approval files under <root>/approvals.
type ApprovalRepository struct {
	store *store[models.Approval]
}

func (r *ApprovalRepository) GetByID(_ context.Context, id string) (*models.Approval, error) {
	approval, err := r.store.get(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "approval", id, err)
	}

	if approval == nil {
		return nil, persistence.NewRecordError("GetByID", "approval", id, persistence.ErrApprovalNotFound)
	}

	return approval, nil
}

func (r *ApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	return r.SaveAll(ctx, []*models.Approval{approval})
}

func (r *ApprovalRepository) SaveAll(_ context.Context, approvals []*models.Approval) error {
	records := make(map[string]*models.Approval, len(approvals))
	for _, approval := range approvals {
		records[approval.ID] = approval
	}

	err := r.store.put(records)
	if err != nil {
		return persistence.NewRecordError("SaveAll", "approval", "", err)
	}

	return nil
}

func (r *ApprovalRepository) ListByInstance(_ context.Context, instanceID string) ([]*models.Approval, error) {
	approvals, err := r.store.filter(func(a *models.Approval) bool {
		return a.InstanceID == instanceID
	})
	if err != nil {
		return nil, persistence.NewRecordError("ListByInstance", "approval", "", err)
	}

	persistence.SortApprovals(approvals)

	return approvals, nil
}

func (r *ApprovalRepository) FindPendingByApprover(_ context.Context, userID string) ([]*models.Approval, error) {
	approvals, err := r.store.filter(func(a *models.Approval) bool {
		return a.Decision == models.DecisionPending && a.ApproverID == userID
	})
	if err != nil {
		return nil, persistence.NewRecordError("FindPendingByApprover", "approval", "", err)
	}

	persistence.SortApprovals(approvals)

	return approvals, nil
}

func (r *ApprovalRepository) FindPendingByRole(_ context.Context, roles []string) ([]*models.Approval, error) {
	approvals, err := r.store.filter(func(a *models.Approval) bool {
		return a.Decision == models.DecisionPending && a.RoleBased() && slices.Contains(roles, a.ApproverRole)
	})
	if err != nil {
		return nil, persistence.NewRecordError("FindPendingByRole", "approval", "", err)
	}

	persistence.SortApprovals(approvals)

	return approvals, nil
}
