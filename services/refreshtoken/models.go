package refreshtoken

import (
	"time"
)

// Status tracks the lifecycle of a refresh token record. Records are never
// hard-deleted on revocation so replayed tokens stay detectable.
type Status string

const (
	StatusLive     Status = "live"
	StatusRevoked  Status = "revoked"
	StatusReplaced Status = "replaced"
)

type RefreshToken struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	AccountID    uint       `json:"account_id" gorm:"not null;index:idx_refresh_tokens_account_status"`
	TokenHash    string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Status       Status     `json:"status" gorm:"size:16;not null;default:live;index:idx_refresh_tokens_account_status"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null;index"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	ReplacedByID *uint      `json:"replaced_by_id,omitempty"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) IsLive(now time.Time) bool {
	return t.Status == StatusLive && now.Before(t.ExpiresAt)
}

// TokenData carries the raw token back to the caller. The raw value is never
// persisted; only its hash is.
type TokenData struct {
	Token     string
	TokenID   uint
	AccountID uint
	ExpiresAt time.Time
}

type RotationResult struct {
	Token      string
	TokenID    uint
	AccountID  uint
	OldTokenID uint
	ExpiresAt  time.Time
}
