package mocks

import (
	"context"

	"github.com/Stefan/orka-ppm-sub007/pkg/rbac"
	"github.com/stretchr/testify/mock"
)

// MockDirectory is a mock implementation of rbac.Directory interface.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)

	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) RoleExists(ctx context.Context, role string) (bool, error) {
	args := m.Called(ctx, role)

	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) HasPermission(ctx context.Context, userID string, permission rbac.Permission) (bool, error) {
	args := m.Called(ctx, userID, permission)

	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) DefaultPermissions(ctx context.Context, role string) ([]rbac.Permission, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]rbac.Permission), args.Error(1)
}

func (m *MockDirectory) UsersWithRole(ctx context.Context, role string) ([]string, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDirectory) RolesOf(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDirectory) ApprovalLimit(ctx context.Context, userID, role, changeType string) (float64, bool, error) {
	args := m.Called(ctx, userID, role, changeType)

	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}
