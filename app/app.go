package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/middleware/authn"
	"github.com/pulsefeed/authkit/middleware/authz"
	"github.com/pulsefeed/authkit/services/accounts"
	"github.com/pulsefeed/authkit/services/audit"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/otp"
	"github.com/pulsefeed/authkit/services/permissions"
	"github.com/pulsefeed/authkit/services/refreshtoken"
	"github.com/pulsefeed/authkit/services/session"
	"github.com/pulsefeed/authkit/services/tokens"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// App is the assembled auth core. Host applications mount Authenticate and
// the Gate on their own router and call the services directly.
type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	db     *gorm.DB

	tokens        *tokens.Service
	refreshTokens *refreshtoken.Service
	permissions   *permissions.Service
	gate          *authz.Gate
	sessions      *session.Service
	accounts      *accounts.Service
	otp           *otp.Service
	audit         *audit.Service
}

func (a *App) Start() error {
	return a.fx.Start(context.Background())
}

func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	if a.logger != nil {
		a.logger.Info("received shutdown signal, stopping gracefully")
	}

	a.Stop()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("failed to stop application gracefully")
		} else {
			log.Printf("failed to stop application gracefully: %v", err)
		}
	}
}

// Authenticate returns the request-authentication middleware backed by this
// app's token codec.
func (a *App) Authenticate(publicPaths ...string) echo.MiddlewareFunc {
	return authn.Authenticate(a.tokens, a.logger, publicPaths...)
}

func (a *App) Gate() *authz.Gate {
	return a.gate
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Tokens() *tokens.Service {
	return a.tokens
}

func (a *App) RefreshTokens() *refreshtoken.Service {
	return a.refreshTokens
}

func (a *App) Permissions() *permissions.Service {
	return a.permissions
}

// Sessions is nil unless accounts or an external account store is wired.
func (a *App) Sessions() *session.Service {
	return a.sessions
}

func (a *App) Accounts() *accounts.Service {
	return a.accounts
}

func (a *App) OTP() *otp.Service {
	return a.otp
}

func (a *App) Audit() *audit.Service {
	return a.audit
}
