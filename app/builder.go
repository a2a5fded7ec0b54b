package app

import (
	"fmt"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/database"
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
)

// Builder assembles the auth core. Token issuing, refresh rotation and
// permission resolution are always wired; account storage, OTP and audit
// logging are opt-in.
type Builder struct {
	config       *config.Config
	features     map[string]bool
	models       []any
	accountStore session.AccountStore
	fxOptions    []fx.Option
	errors       []error
}

func NewBuilder() *Builder {
	return &Builder{
		features: make(map[string]bool),
		models:   make([]any, 0),
	}
}

func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *Builder) WithAutoConfig() *Builder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithAccounts enables the built-in bcrypt account store.
func (b *Builder) WithAccounts() *Builder {
	b.features["accounts"] = true
	b.models = append(b.models, &accounts.Account{})
	return b
}

// WithAccountStore wires an external account lookup instead of the
// built-in store.
func (b *Builder) WithAccountStore(store session.AccountStore) *Builder {
	if store == nil {
		b.addError("account store cannot be nil")
		return b
	}
	b.accountStore = store
	return b
}

func (b *Builder) WithOTP() *Builder {
	b.features["otp"] = true
	b.models = append(b.models, &otp.Secret{}, &otp.UsedCode{})
	return b
}

func (b *Builder) WithAudit() *Builder {
	b.features["audit"] = true
	b.models = append(b.models, &audit.Entry{})
	return b
}

func (b *Builder) WithModels(models ...any) *Builder {
	b.models = append(b.models, models...)
	return b
}

func (b *Builder) WithFxOptions(opts ...fx.Option) *Builder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *Builder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if b.WithAutoConfig(); len(b.errors) > 0 {
			return nil, fmt.Errorf("configuration errors: %v", b.errors)
		}
	}

	logger, err := logging.NewLoggingService(b.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	models := append([]any{&refreshtoken.RefreshToken{}}, b.models...)
	if b.config.Permissions.GrantsFile == "" {
		models = append(models, &permissions.RoleAssignment{}, &permissions.RoleGrant{})
	}

	db, err := database.ProvideDatabase(*b.config, database.WithModels(models...), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
		db:     db,
	}

	options := []fx.Option{
		fx.Supply(b.config),
		fx.Supply(logger),
		fx.Supply(db),
		fx.NopLogger,
		tokens.Options,
		refreshtoken.Options,
		permissions.Options,
		fx.Provide(authz.NewGate),
	}

	if b.accountStore != nil {
		store := b.accountStore
		options = append(options, fx.Provide(func() session.AccountStore { return store }))
	}
	if b.features["accounts"] {
		options = append(options, accounts.Options)
		// Identities from the built-in store must carry the roles the
		// resolver knows about, or role-gated routes deny everything.
		options = append(options, fx.Invoke(func(svc *accounts.Service, source permissions.RoleSource) {
			svc.SetRolesLookup(source)
		}))
	}
	if b.features["otp"] {
		options = append(options, otp.Options)
	}
	if b.features["audit"] {
		options = append(options, audit.Options)
	}

	options = append(options, b.fxOptions...)

	populate := []fx.Option{
		fx.Populate(&app.tokens),
		fx.Populate(&app.refreshTokens),
		fx.Populate(&app.permissions),
		fx.Populate(&app.gate),
	}
	if b.features["accounts"] || b.accountStore != nil {
		options = append(options, session.Options)
		populate = append(populate, fx.Populate(&app.sessions))
	}
	if b.features["accounts"] {
		populate = append(populate, fx.Populate(&app.accounts))
	}
	if b.features["otp"] {
		populate = append(populate, fx.Populate(&app.otp))
	}
	if b.features["audit"] {
		populate = append(populate, fx.Populate(&app.audit))
	}
	options = append(options, populate...)

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}

	return app, nil
}

func (b *Builder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *Builder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.features["accounts"] && b.accountStore != nil {
		return fmt.Errorf("WithAccounts and WithAccountStore are mutually exclusive")
	}

	return nil
}
