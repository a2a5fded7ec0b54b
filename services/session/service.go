package session

import (
	"errors"
	"fmt"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/refreshtoken"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionCompromised  = errors.New("refresh token reuse detected, session revoked")
)

// Account is the identity handed back by the account store collaborator.
type Account struct {
	ID       uint
	Username string
	Roles    []string
	Active   bool
}

// AccountStore is the credential-lookup collaborator. Password hashing and
// account persistence live behind it.
type AccountStore interface {
	GetByID(id uint) (*Account, error)
	GetByUsername(username string) (*Account, error)
	VerifyPassword(account *Account, password string) error
	IsActive(account *Account) bool
}

type TokenIssuer interface {
	IssueAccessToken(accountID uint, roles []string) (string, error)
	AccessExpirySeconds() int
}

type RefreshTokenStore interface {
	Create(accountID uint) (*refreshtoken.TokenData, error)
	Consume(tokenString string) (*refreshtoken.RefreshToken, error)
	Rotate(tokenString string) (*refreshtoken.RotationResult, error)
	RevokeAllForAccount(accountID uint) error
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type Service struct {
	config        *config.Config
	accounts      AccountStore
	tokens        TokenIssuer
	refreshTokens RefreshTokenStore
	logger        *logging.Service
}

func NewService(cfg *config.Config, accounts AccountStore, tokens TokenIssuer, refreshTokens RefreshTokenStore, logger *logging.Service) *Service {
	return &Service{
		config:        cfg,
		accounts:      accounts,
		tokens:        tokens,
		refreshTokens: refreshTokens,
		logger:        logger,
	}
}

// Login validates credentials and opens a session. Unknown usernames, wrong
// passwords, and deactivated accounts all surface the same opaque
// ErrInvalidCredentials so callers cannot probe which condition was true.
func (s *Service) Login(username, password string) (*TokenPair, error) {
	account, err := s.accounts.GetByUsername(username)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("login failed - account lookup",
				zap.String("username", username))
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.VerifyPassword(account, password); err != nil {
		if s.logger != nil {
			s.logger.Warn("login failed - password mismatch",
				zap.Uint("account_id", account.ID))
		}
		return nil, ErrInvalidCredentials
	}

	if !s.accounts.IsActive(account) {
		if s.logger != nil {
			s.logger.Warn("login failed - account deactivated",
				zap.Uint("account_id", account.ID))
		}
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("login successful",
			zap.Uint("account_id", account.ID),
			zap.Strings("roles", account.Roles))
	}

	return pair, nil
}

// Refresh rotates the presented refresh token and issues a new access token.
// Replay of an already-consumed token is reported as ErrSessionCompromised;
// the store has already revoked every live token for the account by the time
// that error surfaces.
func (s *Service) Refresh(rawRefreshToken string) (*TokenPair, error) {
	rotation, err := s.refreshTokens.Rotate(rawRefreshToken)
	if err != nil {
		if errors.Is(err, refreshtoken.ErrTokenReused) {
			if s.logger != nil {
				s.logger.Warn("refresh rejected - session compromised")
			}
			return nil, ErrSessionCompromised
		}
		if s.logger != nil {
			s.logger.Warn("refresh rejected - invalid token", zap.Error(err))
		}
		return nil, ErrInvalidRefreshToken
	}

	account, err := s.accounts.GetByID(rotation.AccountID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("refresh failed - account lookup",
				zap.Uint("account_id", rotation.AccountID),
				zap.Error(err))
		}
		return nil, ErrInvalidRefreshToken
	}

	if !s.accounts.IsActive(account) {
		if s.logger != nil {
			s.logger.Warn("refresh rejected - account deactivated, revoking sessions",
				zap.Uint("account_id", account.ID))
		}
		if err := s.refreshTokens.RevokeAllForAccount(account.ID); err != nil && s.logger != nil {
			s.logger.Error("failed to revoke sessions for deactivated account",
				zap.Uint("account_id", account.ID),
				zap.Error(err))
		}
		return nil, ErrAccountInactive
	}

	accessToken, err := s.tokens.IssueAccessToken(account.ID, account.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rotation.Token,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
	}, nil
}

// Logout invalidates the presented refresh token. It is idempotent: an
// already-invalid token is not an error from the caller's perspective.
func (s *Service) Logout(rawRefreshToken string) {
	if _, err := s.refreshTokens.Consume(rawRefreshToken); err != nil {
		if s.logger != nil {
			s.logger.Debug("logout with invalid refresh token", zap.Error(err))
		}
		return
	}

	if s.logger != nil {
		s.logger.Info("logout successful")
	}
}

// LogoutEverywhere revokes every live session for the account.
func (s *Service) LogoutEverywhere(accountID uint) error {
	return s.refreshTokens.RevokeAllForAccount(accountID)
}

func (s *Service) issuePair(account *Account) (*TokenPair, error) {
	refresh, err := s.refreshTokens.Create(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	accessToken, err := s.tokens.IssueAccessToken(account.ID, account.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
	}, nil
}
