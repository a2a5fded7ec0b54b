package permissions

import (
	"time"
)

// RoleAssignment binds an account to a named role.
type RoleAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"not null;uniqueIndex:idx_role_assignments_account_role"`
	Role      string    `json:"role" gorm:"size:64;not null;uniqueIndex:idx_role_assignments_account_role"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// RoleGrant binds a role to a permission key such as "posts.create".
type RoleGrant struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Role       string    `json:"role" gorm:"size:64;not null;uniqueIndex:idx_role_grants_role_permission"`
	Permission string    `json:"permission" gorm:"size:128;not null;uniqueIndex:idx_role_grants_role_permission"`
	CreatedAt  time.Time `json:"created_at"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}
