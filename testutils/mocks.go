package testutils

import (
	"github.com/stretchr/testify/mock"
)

// MockRoleSource satisfies permissions.RoleSource.
type MockRoleSource struct {
	mock.Mock
}

func (m *MockRoleSource) RolesForAccount(accountID uint) ([]string, error) {
	args := m.Called(accountID)
	if roles, ok := args.Get(0).([]string); ok {
		return roles, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleSource) PermissionsForRole(role string) ([]string, error) {
	args := m.Called(role)
	if perms, ok := args.Get(0).([]string); ok {
		return perms, args.Error(1)
	}
	return nil, args.Error(1)
}
