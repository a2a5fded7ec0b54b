package accounts

import (
	"errors"
	"fmt"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

// RolesLookup supplies the role assignments merged into the identity the
// store hands out. Usually backed by the permissions role source.
type RolesLookup interface {
	RolesForAccount(accountID uint) ([]string, error)
}

// Service is a gorm-backed session.AccountStore.
type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
	roles  RolesLookup
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	if cfg.Accounts.BcryptCost < bcrypt.MinCost || cfg.Accounts.BcryptCost > bcrypt.MaxCost {
		cfg.Accounts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

func (s *Service) SetRolesLookup(roles RolesLookup) {
	s.roles = roles
}

func (s *Service) Register(username, password string) (*session.Account, error) {
	var count int64
	if err := s.db.Model(&Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Accounts.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return nil, ErrPasswordHashingFailed
	}

	record := Account{
		Username:     username,
		PasswordHash: string(hash),
		Active:       true,
	}

	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("account registered",
			zap.Uint("account_id", record.ID),
			zap.String("username", record.Username))
	}

	return s.toIdentity(&record)
}

func (s *Service) GetByID(id uint) (*session.Account, error) {
	var record Account
	if err := s.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s.toIdentity(&record)
}

func (s *Service) GetByUsername(username string) (*session.Account, error) {
	var record Account
	if err := s.db.Where("username = ?", username).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s.toIdentity(&record)
}

func (s *Service) VerifyPassword(account *session.Account, password string) error {
	var record Account
	if err := s.db.First(&record, account.ID).Error; err != nil {
		return ErrAccountNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		if s.logger != nil {
			s.logger.Warn("password verification failed",
				zap.Uint("account_id", account.ID))
		}
		return session.ErrInvalidCredentials
	}

	return nil
}

func (s *Service) IsActive(account *session.Account) bool {
	return account != nil && account.Active
}

func (s *Service) SetActive(id uint, active bool) error {
	result := s.db.Model(&Account{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update account status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	if s.logger != nil {
		s.logger.Info("account status changed",
			zap.Uint("account_id", id),
			zap.Bool("active", active))
	}

	return nil
}

func (s *Service) toIdentity(record *Account) (*session.Account, error) {
	identity := &session.Account{
		ID:       record.ID,
		Username: record.Username,
		Active:   record.Active,
	}

	if s.roles != nil {
		roles, err := s.roles.RolesForAccount(record.ID)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("failed to load account roles",
					zap.Uint("account_id", record.ID),
					zap.Error(err))
			}
			return nil, fmt.Errorf("failed to load account roles: %w", err)
		}
		identity.Roles = roles
	}

	return identity, nil
}
