package session

import (
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/refreshtoken"
	"github.com/pulsefeed/authkit/services/tokens"
	"go.uber.org/fx"
)

func ProvideSessionService(cfg *config.Config, accounts AccountStore, tokenService *tokens.Service, refreshTokens *refreshtoken.Service, logger *logging.Service) *Service {
	return NewService(cfg, accounts, tokenService, refreshTokens, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideSessionService),
)
