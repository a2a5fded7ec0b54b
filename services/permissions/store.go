package permissions

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseSource is a gorm-backed RoleManager. Its mutators write straight
// to the tables and do not touch the resolver cache; mutate through
// Service.AssignRole and friends so cached sets are invalidated.
type DatabaseSource struct {
	db *gorm.DB
}

func NewDatabaseSource(db *gorm.DB) *DatabaseSource {
	return &DatabaseSource{db: db}
}

func (d *DatabaseSource) RolesForAccount(accountID uint) ([]string, error) {
	var roles []string
	err := d.db.Model(&RoleAssignment{}).
		Where("account_id = ?", accountID).
		Pluck("role", &roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query role assignments: %w", err)
	}
	return roles, nil
}

func (d *DatabaseSource) PermissionsForRole(role string) ([]string, error) {
	var permissions []string
	err := d.db.Model(&RoleGrant{}).
		Where("role = ?", role).
		Pluck("permission", &permissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query role grants: %w", err)
	}
	return permissions, nil
}

func (d *DatabaseSource) AssignRole(accountID uint, role string) error {
	assignment := RoleAssignment{AccountID: accountID, Role: role}
	err := d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment).Error
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (d *DatabaseSource) RemoveRole(accountID uint, role string) error {
	err := d.db.Where("account_id = ? AND role = ?", accountID, role).
		Delete(&RoleAssignment{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

func (d *DatabaseSource) Grant(role, permission string) error {
	grant := RoleGrant{Role: role, Permission: permission}
	err := d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant).Error
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

func (d *DatabaseSource) Revoke(role, permission string) error {
	err := d.db.Where("role = ? AND permission = ?", role, permission).
		Delete(&RoleGrant{}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}
