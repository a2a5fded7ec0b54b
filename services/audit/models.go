package audit

import (
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Entry is one privileged action. Rows are append-only; nothing in this
// package updates or deletes them.
type Entry struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AdminAccountID uint      `json:"admin_account_id" gorm:"not null;index"`
	Action         string    `json:"action" gorm:"size:128;not null;index"`
	EntityType     string    `json:"entity_type" gorm:"size:64"`
	EntityID       string    `json:"entity_id" gorm:"size:64"`
	EntityName     string    `json:"entity_name" gorm:"size:255"`
	Details        string    `json:"details" gorm:"type:text"`
	IPAddress      string    `json:"ip_address" gorm:"size:45"`
	UserAgent      string    `json:"user_agent" gorm:"size:512"`
	Browser        string    `json:"browser" gorm:"size:64"`
	OS             string    `json:"os" gorm:"size:64"`
	Status         Status    `json:"status" gorm:"size:16;not null;default:success"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (Entry) TableName() string {
	return "audit_log_entries"
}
