package mocks

import (
	"context"

	"github.com/Stefan/orka-ppm-sub007/pkg/models"
	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDefinitionRepository is a mock implementation of persistence.DefinitionRepository.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	args := m.Called(ctx, definition)

	return args.Error(0)
}

func (m *MockDefinitionRepository) ListByStatus(
	ctx context.Context,
	status models.DefinitionStatus,
) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

// MockInstanceRepository is a mock implementation of persistence.InstanceRepository.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockInstanceRepository) ListByStatus(
	ctx context.Context,
	status models.InstanceStatus,
) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) FindByEntity(
	ctx context.Context,
	entityType, entityID string,
) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

// MockApprovalRepository is a mock implementation of persistence.ApprovalRepository.
type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Approval), args.Error(1)
}

func (m *MockApprovalRepository) Save(ctx context.Context, approval *models.Approval) error {
	args := m.Called(ctx, approval)

	return args.Error(0)
}

func (m *MockApprovalRepository) SaveAll(ctx context.Context, approvals []*models.Approval) error {
	args := m.Called(ctx, approvals)

	return args.Error(0)
}

func (m *MockApprovalRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Approval, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Approval), args.Error(1)
}

func (m *MockApprovalRepository) FindPendingByApprover(ctx context.Context, userID string) ([]*models.Approval, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Approval), args.Error(1)
}

func (m *MockApprovalRepository) FindPendingByRole(ctx context.Context, roles []string) ([]*models.Approval, error) {
	args := m.Called(ctx, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Approval), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence backed by the mock
// repositories above.
type MockPersistence struct {
	mock.Mock

	Definitions *MockDefinitionRepository
	Instances   *MockInstanceRepository
	Approvals   *MockApprovalRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Definitions: &MockDefinitionRepository{},
		Instances:   &MockInstanceRepository{},
		Approvals:   &MockApprovalRepository{},
	}
}

func (m *MockPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return m.Definitions
}

func (m *MockPersistence) InstanceRepository() persistence.InstanceRepository {
	return m.Instances
}

func (m *MockPersistence) ApprovalRepository() persistence.ApprovalRepository {
	return m.Approvals
}

func (m *MockPersistence) SaveInstanceState(
	ctx context.Context,
	instance *models.WorkflowInstance,
	approvals []*models.Approval,
) error {
	args := m.Called(ctx, instance, approvals)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
