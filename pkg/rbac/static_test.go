package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestDirectory(t *testing.T) *StaticDirectory {
	t.Helper()

	directory, err := LoadDirectory("testdata/directory.yaml")
	require.NoError(t, err)

	return directory
}

func TestLoadDirectory_MissingFile(t *testing.T) {
	_, err := LoadDirectory("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read directory file")
}

func TestStaticDirectory_Existence(t *testing.T) {
	directory := loadTestDirectory(t)
	ctx := t.Context()

	ok, err := directory.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = directory.UserExists(ctx, "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = directory.RoleExists(ctx, "finance_manager")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = directory.DefaultPermissions(ctx, "auditor")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestStaticDirectory_HasPermission(t *testing.T) {
	directory := loadTestDirectory(t)
	ctx := t.Context()

	tests := []struct {
		user       string
		permission Permission
		want       bool
	}{
		{"alice", PermissionWorkflowApprove, true},
		{"alice", PermissionBudgetApprove, false},
		{"bob", PermissionBudgetApprove, true},
		{"carol", PermissionRiskApprove, true},
		{"dave", PermissionWorkflowApprove, false},
		{"mallory", PermissionProjectRead, false},
	}

	for _, tt := range tests {
		got, err := directory.HasPermission(ctx, tt.user, tt.permission)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%s", tt.user, tt.permission)
	}
}

func TestStaticDirectory_UsersWithRole(t *testing.T) {
	directory := loadTestDirectory(t)

	users, err := directory.UsersWithRole(t.Context(), "project_manager")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	ok, err := HasRole(t.Context(), directory, "carol", "project_manager")
	require.NoError(t, err)
	assert.False(t, ok)

	// Membership changes are visible immediately.
	directory.PutUser("carol", UserSpec{Roles: []string{"project_manager"}})

	ok, err = HasRole(t.Context(), directory, "carol", "project_manager")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaticDirectory_ApprovalLimit(t *testing.T) {
	directory := loadTestDirectory(t)
	ctx := t.Context()

	limit, ok, err := directory.ApprovalLimit(ctx, "alice", "project_manager", "SCOPE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50000.0, limit)

	limit, ok, err = directory.ApprovalLimit(ctx, "alice", "project_manager", "BUDGET")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 75000.0, limit)

	// User override wins over the role table.
	limit, ok, err = directory.ApprovalLimit(ctx, "bob", "project_manager", "BUDGET")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90000.0, limit)

	// Users cannot borrow a role they do not hold.
	_, ok, err = directory.ApprovalLimit(ctx, "alice", "finance_manager", "BUDGET")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = directory.ApprovalLimit(ctx, "dave", "viewer", "BUDGET")
	require.NoError(t, err)
	assert.False(t, ok)
}
