package permissions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource is an immutable RoleSource loaded from a YAML grants file.
// Useful for bootstrap setups and tests where the role model is fixed.
//
//	roles:
//	  Moderator: [posts.delete, comments.delete]
//	assignments:
//	  42: [Moderator]
type StaticSource struct {
	roles       map[string][]string
	assignments map[uint][]string
}

type grantsFile struct {
	Roles       map[string][]string `yaml:"roles"`
	Assignments map[uint][]string   `yaml:"assignments"`
}

func NewStaticSource(roles map[string][]string, assignments map[uint][]string) *StaticSource {
	if roles == nil {
		roles = map[string][]string{}
	}
	if assignments == nil {
		assignments = map[uint][]string{}
	}
	return &StaticSource{roles: roles, assignments: assignments}
}

func NewStaticSourceFromFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grants file: %w", err)
	}

	var parsed grantsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse grants file: %w", err)
	}

	return NewStaticSource(parsed.Roles, parsed.Assignments), nil
}

func (s *StaticSource) RolesForAccount(accountID uint) ([]string, error) {
	return s.assignments[accountID], nil
}

func (s *StaticSource) PermissionsForRole(role string) ([]string, error) {
	return s.roles[role], nil
}
