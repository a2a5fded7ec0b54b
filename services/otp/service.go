package otp

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrOTPDisabled     = errors.New("OTP is disabled")
	ErrInvalidCode     = errors.New("invalid OTP code")
	ErrCodeAlreadyUsed = errors.New("OTP code has already been used")
	ErrAlreadyEnrolled = errors.New("OTP secret already exists for account")
	ErrNotEnrolled     = errors.New("OTP secret not found for account")
)

// replayWindow is how long a verified code stays unusable. It covers the
// 30s TOTP step plus the one-step skew totp.Validate tolerates.
const replayWindow = 90 * time.Second

// Service manages TOTP enrollment and step-up code verification.
type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing OTP service",
			zap.Bool("enabled", cfg.OTP.Enabled),
			zap.String("issuer", cfg.OTP.Issuer))
	}

	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for the replay window.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enroll generates and stores an unconfirmed secret for the account.
func (s *Service) Enroll(accountID uint, accountName string) (*Secret, error) {
	if !s.config.OTP.Enabled {
		return nil, ErrOTPDisabled
	}

	var existing Secret
	if err := s.db.Where("account_id = ?", accountID).First(&existing).Error; err == nil {
		return nil, ErrAlreadyEnrolled
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing OTP secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: accountName,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate OTP key",
				zap.Uint("account_id", accountID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to generate OTP key: %w", err)
	}

	secret := &Secret{
		AccountID: accountID,
		Secret:    key.Secret(),
	}
	if err := s.db.Create(secret).Error; err != nil {
		return nil, fmt.Errorf("failed to store OTP secret: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("OTP secret enrolled",
			zap.Uint("account_id", accountID))
	}

	return secret, nil
}

// ProvisioningURI renders the otpauth URI authenticator apps consume.
func (s *Service) ProvisioningURI(secret *Secret, accountName string) string {
	issuer := s.issuer()
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(issuer), url.PathEscape(accountName), secret.Secret, url.QueryEscape(issuer))
}

// Confirm validates a first code against an unconfirmed secret, activating
// step-up verification for the account.
func (s *Service) Confirm(accountID uint, code string) error {
	if !s.config.OTP.Enabled {
		return ErrOTPDisabled
	}

	secret, err := s.secretFor(accountID)
	if err != nil {
		return err
	}

	if !totp.Validate(code, secret.Secret) {
		return ErrInvalidCode
	}

	secret.Confirmed = true
	if err := s.db.Save(secret).Error; err != nil {
		return fmt.Errorf("failed to confirm OTP secret: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("OTP enrollment confirmed",
			zap.Uint("account_id", accountID))
	}

	return nil
}

// IsEnrolled reports whether the account has a confirmed secret.
func (s *Service) IsEnrolled(accountID uint) bool {
	if !s.config.OTP.Enabled {
		return false
	}

	secret, err := s.secretFor(accountID)
	if err != nil {
		return false
	}
	return secret.Confirmed
}

// Verify checks a step-up code against the account's confirmed secret.
// Each code is single-use inside the replay window.
func (s *Service) Verify(accountID uint, code string) error {
	if !s.config.OTP.Enabled {
		return ErrOTPDisabled
	}

	secret, err := s.secretFor(accountID)
	if err != nil {
		return err
	}
	if !secret.Confirmed {
		return ErrNotEnrolled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cutoff := s.now().Add(-replayWindow).Unix()
		var used UsedCode
		if err := tx.Where("account_id = ? AND code = ? AND used_at > ?", accountID, code, cutoff).First(&used).Error; err == nil {
			if s.logger != nil {
				s.logger.Warn("OTP code replay rejected",
					zap.Uint("account_id", accountID))
			}
			return ErrCodeAlreadyUsed
		}

		if !totp.Validate(code, secret.Secret) {
			return ErrInvalidCode
		}

		record := &UsedCode{
			AccountID: accountID,
			Code:      code,
			UsedAt:    s.now().Unix(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to store used code: %w", err)
		}

		return nil
	})
}

// Unenroll removes the account's secret and its replay-guard records.
func (s *Service) Unenroll(accountID uint) error {
	if !s.config.OTP.Enabled {
		return ErrOTPDisabled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("account_id = ?", accountID).Delete(&Secret{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove OTP secret: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotEnrolled
		}

		if err := tx.Where("account_id = ?", accountID).Delete(&UsedCode{}).Error; err != nil {
			return fmt.Errorf("failed to clean up used codes: %w", err)
		}

		if s.logger != nil {
			s.logger.Info("OTP unenrolled",
				zap.Uint("account_id", accountID))
		}

		return nil
	})
}

// CleanupUsedCodes drops replay-guard records past their window.
func (s *Service) CleanupUsedCodes() error {
	cutoff := s.now().Add(-replayWindow).Unix()
	result := s.db.Where("used_at < ?", cutoff).Delete(&UsedCode{})
	if result.Error != nil {
		return fmt.Errorf("failed to clean up used codes: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Debug("cleaned up used OTP codes",
			zap.Int64("removed", result.RowsAffected))
	}

	return nil
}

func (s *Service) secretFor(accountID uint) (*Secret, error) {
	var secret Secret
	if err := s.db.Where("account_id = ?", accountID).First(&secret).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to retrieve OTP secret: %w", err)
	}
	return &secret, nil
}

func (s *Service) issuer() string {
	if s.config.OTP.Issuer == "" {
		return s.config.App.Name
	}
	return s.config.OTP.Issuer
}
