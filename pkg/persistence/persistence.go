// Package persistence provides the record store abstraction for workflow definitions,
// instances and approvals.
package persistence

import (
	"context"
	"sort"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
)

type Persistence interface {
	DefinitionRepository() DefinitionRepository
	InstanceRepository() InstanceRepository
	ApprovalRepository() ApprovalRepository

	// SaveInstanceState stores an instance together with the approvals a transition changed.
	// Either every record is written or none is.
	SaveInstanceState(ctx context.Context, instance *models.WorkflowInstance, approvals []*models.Approval) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions. Definitions are never deleted; retired
// definitions are archived.
type DefinitionRepository interface {
	GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	ListByStatus(ctx context.Context, status models.DefinitionStatus) ([]*models.WorkflowDefinition, error)
}

// InstanceRepository stores workflow instances.
type InstanceRepository interface {
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error)
	FindByEntity(ctx context.Context, entityType, entityID string) ([]*models.WorkflowInstance, error)
}

// ApprovalRepository stores approval slots. Approvals are never deleted.
type ApprovalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	Save(ctx context.Context, approval *models.Approval) error
	SaveAll(ctx context.Context, approvals []*models.Approval) error
	ListByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error)
	// FindPendingByApprover returns pending approvals explicitly assigned to the user.
	FindPendingByApprover(ctx context.Context, userID string) ([]*models.Approval, error)
	// FindPendingByRole returns pending role-based approvals for any of the roles.
	FindPendingByRole(ctx context.Context, roles []string) ([]*models.Approval, error)
}

// SortApprovals orders approvals by step, then creation time, then id.
func SortApprovals(approvals []*models.Approval) {
	sort.SliceStable(approvals, func(i, j int) bool {
		a, b := approvals[i], approvals[j]
		if a.StepOrder != b.StepOrder {
			return a.StepOrder < b.StepOrder
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.ID < b.ID
	})
}

// SortInstances orders instances by start time, then id.
func SortInstances(instances []*models.WorkflowInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if !instances[i].StartedAt.Equal(instances[j].StartedAt) {
			return instances[i].StartedAt.Before(instances[j].StartedAt)
		}

		return instances[i].ID < instances[j].ID
	})
}

// SortDefinitions orders definitions by creation time, then id.
func SortDefinitions(definitions []*models.WorkflowDefinition) {
	sort.SliceStable(definitions, func(i, j int) bool {
		if !definitions[i].CreatedAt.Equal(definitions[j].CreatedAt) {
			return definitions[i].CreatedAt.Before(definitions[j].CreatedAt)
		}

		return definitions[i].ID < definitions[j].ID
	})
}
