package accounts

import (
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/session"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(db, cfg, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideAccountService),
	fx.Provide(func(s *Service) session.AccountStore { return s }),
)
