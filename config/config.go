package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"AUTHKIT_APP_"`
	Log          LogConfig          `envPrefix:"AUTHKIT_LOG_"`
	Database     DatabaseConfig     `envPrefix:"AUTHKIT_DB_"`
	Accounts     AccountsConfig     `envPrefix:"AUTHKIT_ACCOUNTS_"`
	JWT          JWTConfig          `envPrefix:"AUTHKIT_JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"AUTHKIT_REFRESH_"`
	Permissions  PermissionsConfig  `envPrefix:"AUTHKIT_PERMISSIONS_"`
	OTP          OTPConfig          `envPrefix:"AUTHKIT_OTP_"`
	Audit        AuditConfig        `envPrefix:"AUTHKIT_AUDIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"authkit"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"authkit.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AccountsConfig struct {
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Issuer       string        `env:"ISSUER" envDefault:"authkit"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
}

type RefreshTokenConfig struct {
	Expiry          time.Duration `env:"EXPIRY" envDefault:"720h"`
	TokenLength     int           `env:"TOKEN_LENGTH" envDefault:"32"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	RetentionPeriod time.Duration `env:"RETENTION_PERIOD" envDefault:"2160h"`
}

type PermissionsConfig struct {
	CacheTTL   time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	GrantsFile string        `env:"GRANTS_FILE"`
}

type OTPConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Issuer  string `env:"ISSUER" envDefault:"authkit"`
}

type AuditConfig struct {
	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"200"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
