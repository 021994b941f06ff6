package rbac

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// RoleSpec describes a role in a directory file.
type RoleSpec struct {
	Permissions []Permission `yaml:"permissions"`
	// ApprovalLimits maps a change type (or "default") to the role's approval ceiling.
	ApprovalLimits map[string]float64 `yaml:"approval_limits"`
}

// UserSpec describes a user in a directory file.
type UserSpec struct {
	Roles       []string     `yaml:"roles"`
	Permissions []Permission `yaml:"permissions"`
	// ApprovalLimits maps a role name to a user-specific ceiling overriding the role default.
	ApprovalLimits map[string]float64 `yaml:"approval_limits"`
}

// DirectorySpec is the YAML document loaded by LoadDirectory.
type DirectorySpec struct {
	Roles map[string]RoleSpec `yaml:"roles"`
	Users map[string]UserSpec `yaml:"users"`
}

// StaticDirectory is an in-memory Directory. Roles map to user-id sets, never to user objects.
type StaticDirectory struct {
	mu    sync.RWMutex
	roles map[string]RoleSpec
	users map[string]UserSpec
}

// NewStaticDirectory builds a directory from a spec.
func NewStaticDirectory(spec DirectorySpec) *StaticDirectory {
	d := &StaticDirectory{
		roles: make(map[string]RoleSpec),
		users: make(map[string]UserSpec),
	}

	for name, role := range spec.Roles {
		d.roles[name] = role
	}

	for id, user := range spec.Users {
		d.users[id] = user
	}

	return d
}

// LoadDirectory reads a YAML directory file.
func LoadDirectory(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file %s: %w", path, err)
	}

	var spec DirectorySpec

	err = yaml.Unmarshal(data, &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory file %s: %w", path, err)
	}

	return NewStaticDirectory(spec), nil
}

// PutUser adds or replaces a user.
func (d *StaticDirectory) PutUser(id string, user UserSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[id] = user
}

// PutRole adds or replaces a role.
func (d *StaticDirectory) PutRole(name string, role RoleSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roles[name] = role
}

func (d *StaticDirectory) UserExists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[userID]

	return ok, nil
}

func (d *StaticDirectory) RoleExists(_ context.Context, role string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.roles[role]

	return ok, nil
}

// HasPermission checks direct grants first, then the defaults of every role the user holds.
func (d *StaticDirectory) HasPermission(_ context.Context, userID string, permission Permission) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return false, nil
	}

	if slices.Contains(user.Permissions, permission) {
		return true, nil
	}

	for _, roleName := range user.Roles {
		if role, ok := d.roles[roleName]; ok && slices.Contains(role.Permissions, permission) {
			return true, nil
		}
	}

	return false, nil
}

func (d *StaticDirectory) DefaultPermissions(_ context.Context, role string) ([]Permission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	spec, ok := d.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}

	return slices.Clone(spec.Permissions), nil
}

// UsersWithRole returns the holders of role sorted by id.
func (d *StaticDirectory) UsersWithRole(_ context.Context, role string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]string, 0)

	for id, user := range d.users {
		if slices.Contains(user.Roles, role) {
			users = append(users, id)
		}
	}

	sort.Strings(users)

	return users, nil
}

func (d *StaticDirectory) RolesOf(_ context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	return slices.Clone(user.Roles), nil
}

// ApprovalLimit resolves a user override for the role, then the role's change-type limit,
// then the role's "default" limit.
func (d *StaticDirectory) ApprovalLimit(_ context.Context, userID, role, changeType string) (float64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok || !slices.Contains(user.Roles, role) {
		return 0, false, nil
	}

	if limit, ok := user.ApprovalLimits[role]; ok {
		return limit, true, nil
	}

	spec, ok := d.roles[role]
	if !ok {
		return 0, false, nil
	}

	if limit, ok := spec.ApprovalLimits[changeType]; ok {
		return limit, true, nil
	}

	if limit, ok := spec.ApprovalLimits["default"]; ok {
		return limit, true, nil
	}

	return 0, false, nil
}
