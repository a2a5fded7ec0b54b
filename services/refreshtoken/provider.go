package refreshtoken

import (
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideRefreshTokenService(db *gorm.DB, config *config.Config, logger *logging.Service) *Service {
	service := NewService(db, config, logger)

	if config.RefreshToken.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Options = fx.Options(
	fx.Provide(ProvideRefreshTokenService),
	fx.Provide(func(s *Service) RefreshTokenService { return s }),
)
