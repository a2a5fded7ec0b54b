package permissions

import (
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideRoleSource(cfg *config.Config, db *gorm.DB) (RoleSource, error) {
	if cfg.Permissions.GrantsFile != "" {
		return NewStaticSourceFromFile(cfg.Permissions.GrantsFile)
	}
	return NewDatabaseSource(db), nil
}

func ProvidePermissionService(cfg *config.Config, source RoleSource, logger *logging.Service) *Service {
	return NewService(cfg, source, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideRoleSource),
	fx.Provide(ProvidePermissionService),
)
