package refreshtoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound         = errors.New("refresh token not found")
	ErrTokenExpired          = errors.New("refresh token expired")
	ErrTokenReused           = errors.New("refresh token reuse detected")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

type RefreshTokenService interface {
	Create(accountID uint) (*TokenData, error)
	Consume(tokenString string) (*RefreshToken, error)
	Rotate(tokenString string) (*RotationResult, error)
	RevokeAllForAccount(accountID uint) error
	CleanupExpiredTokens() error
}

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(db *gorm.DB, config *config.Config, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing refresh token service",
			zap.Duration("token_expiry", config.RefreshToken.Expiry),
			zap.Int("token_length", config.RefreshToken.TokenLength),
			zap.Duration("cleanup_interval", config.RefreshToken.CleanupInterval))
	}

	return &Service{
		db:     db,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for expiry checks.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Create(accountID uint) (*TokenData, error) {
	if s.logger != nil {
		s.logger.Debug("creating refresh token",
			zap.Uint("account_id", accountID))
	}

	token, err := s.generateSecureToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate secure refresh token", zap.Error(err))
		}
		return nil, ErrTokenGenerationFailed
	}

	now := s.now()
	record := RefreshToken{
		AccountID: accountID,
		TokenHash: s.hashToken(token),
		Status:    StatusLive,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.RefreshToken.Expiry),
	}

	if err := s.db.Create(&record).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store refresh token", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("refresh token created",
			zap.Uint("account_id", accountID),
			zap.Uint("token_id", record.ID),
			zap.Time("expires_at", record.ExpiresAt))
	}

	return &TokenData{
		Token:     token,
		TokenID:   record.ID,
		AccountID: accountID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Consume marks a live token revoked and returns its record. A token that is
// already revoked or replaced is treated as evidence of theft: every live
// token for the account is revoked and ErrTokenReused is returned. The
// revocation uses a conditional update so two concurrent consumers of the
// same raw token can never both succeed.
func (s *Service) Consume(tokenString string) (*RefreshToken, error) {
	tokenHash := s.hashToken(tokenString)

	var record RefreshToken
	err := s.db.Where("token_hash = ?", tokenHash).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logger != nil {
				s.logger.Warn("refresh token consumption failed - token not found")
			}
			return nil, ErrTokenNotFound
		}
		if s.logger != nil {
			s.logger.Error("refresh token consumption failed - database error", zap.Error(err))
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := s.now()

	// Expiry is checked first: an expired token is a benign failure however
	// often it is presented, and must never escalate to reuse remediation.
	if now.After(record.ExpiresAt) {
		if s.logger != nil {
			s.logger.Warn("refresh token consumption failed - token expired",
				zap.Uint("token_id", record.ID),
				zap.Uint("account_id", record.AccountID),
				zap.Time("expired_at", record.ExpiresAt))
		}
		return nil, ErrTokenExpired
	}

	if record.Status != StatusLive {
		if s.logger != nil {
			s.logger.Warn("refresh token reuse detected - revoking all account tokens",
				zap.Uint("token_id", record.ID),
				zap.Uint("account_id", record.AccountID),
				zap.String("status", string(record.Status)))
		}
		if err := s.RevokeAllForAccount(record.AccountID); err != nil && s.logger != nil {
			s.logger.Error("failed to revoke account tokens after reuse detection",
				zap.Uint("account_id", record.AccountID),
				zap.Error(err))
		}
		return nil, ErrTokenReused
	}

	result := s.db.Model(&RefreshToken{}).
		Where("id = ? AND status = ?", record.ID, StatusLive).
		Updates(map[string]any{"status": StatusRevoked, "revoked_at": now})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke refresh token on consumption", zap.Error(result.Error))
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Lost the race against a concurrent consumer. Indistinguishable
		// from replay, so the same remediation applies.
		if s.logger != nil {
			s.logger.Warn("concurrent refresh token consumption detected",
				zap.Uint("token_id", record.ID),
				zap.Uint("account_id", record.AccountID))
		}
		if err := s.RevokeAllForAccount(record.AccountID); err != nil && s.logger != nil {
			s.logger.Error("failed to revoke account tokens after concurrent consumption",
				zap.Uint("account_id", record.AccountID),
				zap.Error(err))
		}
		return nil, ErrTokenReused
	}

	record.Status = StatusRevoked
	record.RevokedAt = &now

	if s.logger != nil {
		s.logger.Debug("refresh token consumed",
			zap.Uint("token_id", record.ID),
			zap.Uint("account_id", record.AccountID))
	}

	return &record, nil
}

// Rotate consumes the presented token and issues a replacement, linking the
// old record to the new one.
func (s *Service) Rotate(tokenString string) (*RotationResult, error) {
	oldToken, err := s.Consume(tokenString)
	if err != nil {
		return nil, err
	}

	newToken, err := s.Create(oldToken.AccountID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("refresh token rotation failed - replacement creation error",
				zap.Error(err),
				zap.Uint("account_id", oldToken.AccountID))
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	err = s.db.Model(&RefreshToken{}).
		Where("id = ?", oldToken.ID).
		Updates(map[string]any{"status": StatusReplaced, "replaced_by_id": newToken.TokenID}).Error
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to link replaced refresh token",
			zap.Uint("token_id", oldToken.ID),
			zap.Error(err))
	}

	if s.logger != nil {
		s.logger.Info("refresh token rotated",
			zap.Uint("account_id", oldToken.AccountID),
			zap.Uint("old_token_id", oldToken.ID),
			zap.Uint("new_token_id", newToken.TokenID))
	}

	return &RotationResult{
		Token:      newToken.Token,
		TokenID:    newToken.TokenID,
		AccountID:  oldToken.AccountID,
		OldTokenID: oldToken.ID,
		ExpiresAt:  newToken.ExpiresAt,
	}, nil
}

func (s *Service) RevokeAllForAccount(accountID uint) error {
	result := s.db.Model(&RefreshToken{}).
		Where("account_id = ? AND status = ?", accountID, StatusLive).
		Updates(map[string]any{"status": StatusRevoked, "revoked_at": s.now()})

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke all account refresh tokens",
				zap.Error(result.Error),
				zap.Uint("account_id", accountID))
		}
		return fmt.Errorf("failed to revoke all account refresh tokens: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("all account refresh tokens revoked",
			zap.Uint("account_id", accountID),
			zap.Int64("count", result.RowsAffected))
	}

	return nil
}

// CleanupExpiredTokens deletes records whose expiry passed longer ago than
// the configured retention period. Recently expired records are kept so
// replay attempts against them remain observable.
func (s *Service) CleanupExpiredTokens() error {
	cutoff := s.now().Add(-s.config.RefreshToken.RetentionPeriod)

	result := s.db.Where("expires_at < ?", cutoff).Delete(&RefreshToken{})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to cleanup expired refresh tokens", zap.Error(result.Error))
		}
		return fmt.Errorf("failed to cleanup expired tokens: %w", result.Error)
	}

	if s.logger != nil {
		if result.RowsAffected > 0 {
			s.logger.Info("cleaned up expired refresh tokens",
				zap.Int64("count", result.RowsAffected))
		} else {
			s.logger.Debug("no expired refresh tokens found to cleanup")
		}
	}

	return nil
}

func (s *Service) StartCleanupWorker() {
	go func() {
		ticker := time.NewTicker(s.config.RefreshToken.CleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			if err := s.CleanupExpiredTokens(); err != nil && s.logger != nil {
				s.logger.Error("refresh token cleanup worker failed", zap.Error(err))
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("started refresh token cleanup worker",
			zap.Duration("interval", s.config.RefreshToken.CleanupInterval))
	}
}

func (s *Service) generateSecureToken() (string, error) {
	tokenBytes := make([]byte, s.config.RefreshToken.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

func (s *Service) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
