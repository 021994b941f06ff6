// Package rbac defines the role/permission oracle the approval engine consults.
package rbac

import (
	"context"
	"errors"
	"slices"
)

// Permission is a named capability held by a user directly or through a role.
type Permission string

const (
	PermissionWorkflowApprove  Permission = "workflow_approve"
	PermissionBudgetApprove    Permission = "budget_approve"
	PermissionResourceApprove  Permission = "resource_approve"
	PermissionMilestoneApprove Permission = "milestone_approve"
	PermissionRiskApprove      Permission = "risk_approve"
	PermissionChangeApprove    Permission = "change_approve"
	PermissionWorkflowManage   Permission = "workflow_manage"
	PermissionProjectRead      Permission = "project_read"
)

// ApprovalCapable is the fixed set of permissions that make a user or role eligible to approve.
var ApprovalCapable = []Permission{
	PermissionWorkflowApprove,
	PermissionBudgetApprove,
	PermissionResourceApprove,
	PermissionMilestoneApprove,
	PermissionRiskApprove,
	PermissionChangeApprove,
}

// IsApprovalCapable reports whether the permission is in the approval-capable set.
func IsApprovalCapable(permission Permission) bool {
	return slices.Contains(ApprovalCapable, permission)
}

var (
	// ErrUserNotFound indicates the user id is unknown to the directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrRoleNotFound indicates the role name is unknown to the directory.
	ErrRoleNotFound = errors.New("role not found")
)

// Directory is the external RBAC oracle. Role membership is looked up on every call and never
// cached by the engine, so role changes mid-workflow take effect immediately.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	RoleExists(ctx context.Context, role string) (bool, error)
	HasPermission(ctx context.Context, userID string, permission Permission) (bool, error)
	DefaultPermissions(ctx context.Context, role string) ([]Permission, error)
	UsersWithRole(ctx context.Context, role string) ([]string, error)
	RolesOf(ctx context.Context, userID string) ([]string, error)
	// ApprovalLimit returns the user's approval ceiling under role for the change type.
	// ok is false when no limit is configured.
	ApprovalLimit(ctx context.Context, userID, role, changeType string) (limit float64, ok bool, err error)
}

// HasRole reports whether userID currently holds role.
func HasRole(ctx context.Context, directory Directory, userID, role string) (bool, error) {
	users, err := directory.UsersWithRole(ctx, role)
	if err != nil {
		return false, err
	}

	return slices.Contains(users, userID), nil
}
