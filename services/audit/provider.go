package audit

import (
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAuditService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideAuditService),
)
