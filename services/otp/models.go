package otp

import (
	"time"
)

// Secret is an account's enrolled TOTP secret. Confirmed becomes true once
// the account proves possession by verifying a first code.
type Secret struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"uniqueIndex;not null"`
	Secret    string    `json:"-" gorm:"not null"`
	Confirmed bool      `json:"confirmed" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Secret) TableName() string {
	return "otp_secrets"
}

// UsedCode guards against replaying a code inside its validity window.
type UsedCode struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID uint   `gorm:"index:idx_otp_used_account_code,priority:1;not null"`
	Code      string `gorm:"size:16;index:idx_otp_used_account_code,priority:2;not null"`
	UsedAt    int64  `gorm:"index;not null"`
}

func (UsedCode) TableName() string {
	return "otp_used_codes"
}
