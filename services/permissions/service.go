package permissions

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/zap"
)

var ErrSourceReadOnly = errors.New("role source is read-only")

// RoleSource is the role-permission store collaborator.
type RoleSource interface {
	RolesForAccount(accountID uint) ([]string, error)
	PermissionsForRole(role string) ([]string, error)
}

// RoleManager is a RoleSource that also supports mutation. Mutations must
// go through Service so the cache is invalidated on every write.
type RoleManager interface {
	RoleSource
	AssignRole(accountID uint, role string) error
	RemoveRole(accountID uint, role string) error
	Grant(role, permission string) error
	Revoke(role, permission string) error
}

// Set is an account's effective permission set, the union across its roles.
type Set map[string]struct{}

func NewSet(permissions ...string) Set {
	set := make(Set, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return set
}

func (s Set) Has(permission string) bool {
	_, ok := s[permission]
	return ok
}

func (s Set) HasAll(permissions ...string) bool {
	for _, p := range permissions {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s Set) HasAny(permissions ...string) bool {
	for _, p := range permissions {
		if s.Has(p) {
			return true
		}
	}
	return false
}

func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for p := range s {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}

type cacheEntry struct {
	set       Set
	expiresAt time.Time
}

// Service resolves effective permissions with a bounded-TTL per-account
// cache. A permission revoked at the source may stay effective until the
// entry expires; writers that change role assignment call Invalidate to
// shorten that window.
type Service struct {
	config *config.Config
	source RoleSource
	logger *logging.Service
	cache  sync.Map
	now    func() time.Time
}

func NewService(cfg *config.Config, source RoleSource, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing permission service",
			zap.Duration("cache_ttl", cfg.Permissions.CacheTTL))
	}

	return &Service{
		config: cfg,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for cache expiry.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Resolve(accountID uint) (Set, error) {
	if entry, ok := s.cache.Load(accountID); ok {
		cached := entry.(cacheEntry)
		if s.now().Before(cached.expiresAt) {
			return cached.set, nil
		}
	}

	roles, err := s.source.RolesForAccount(accountID)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to resolve account roles",
				zap.Uint("account_id", accountID),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to resolve account roles: %w", err)
	}

	set := make(Set)
	for _, role := range roles {
		grants, err := s.source.PermissionsForRole(role)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("failed to resolve role permissions",
					zap.String("role", role),
					zap.Error(err))
			}
			return nil, fmt.Errorf("failed to resolve permissions for role %q: %w", role, err)
		}
		for _, grant := range grants {
			set[grant] = struct{}{}
		}
	}

	if s.config.Permissions.CacheTTL > 0 {
		s.cache.Store(accountID, cacheEntry{
			set:       set,
			expiresAt: s.now().Add(s.config.Permissions.CacheTTL),
		})
	}

	if s.logger != nil {
		s.logger.Debug("resolved account permissions",
			zap.Uint("account_id", accountID),
			zap.Int("permission_count", len(set)))
	}

	return set, nil
}

// Invalidate drops the cached set for one account. Call it wherever role
// assignment changes.
func (s *Service) Invalidate(accountID uint) {
	s.cache.Delete(accountID)

	if s.logger != nil {
		s.logger.Debug("permission cache invalidated",
			zap.Uint("account_id", accountID))
	}
}

func (s *Service) InvalidateAll() {
	s.cache.Clear()

	if s.logger != nil {
		s.logger.Info("permission cache cleared")
	}
}

// AssignRole writes through to the source and drops the account's cached
// set, so the change is visible on the next Resolve. Fails with
// ErrSourceReadOnly when the source does not support mutation.
func (s *Service) AssignRole(accountID uint, role string) error {
	manager, ok := s.source.(RoleManager)
	if !ok {
		return ErrSourceReadOnly
	}
	if err := manager.AssignRole(accountID, role); err != nil {
		return err
	}
	s.Invalidate(accountID)
	return nil
}

func (s *Service) RemoveRole(accountID uint, role string) error {
	manager, ok := s.source.(RoleManager)
	if !ok {
		return ErrSourceReadOnly
	}
	if err := manager.RemoveRole(accountID, role); err != nil {
		return err
	}
	s.Invalidate(accountID)
	return nil
}

// Grant changes what a role means for every account holding it, so the
// whole cache is dropped rather than one entry.
func (s *Service) Grant(role, permission string) error {
	manager, ok := s.source.(RoleManager)
	if !ok {
		return ErrSourceReadOnly
	}
	if err := manager.Grant(role, permission); err != nil {
		return err
	}
	s.InvalidateAll()
	return nil
}

func (s *Service) Revoke(role, permission string) error {
	manager, ok := s.source.(RoleManager)
	if !ok {
		return ErrSourceReadOnly
	}
	if err := manager.Revoke(role, permission); err != nil {
		return err
	}
	s.InvalidateAll()
	return nil
}
