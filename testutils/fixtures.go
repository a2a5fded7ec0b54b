package testutils

import (
	"time"

	"github.com/pulsefeed/authkit/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Accounts: config.AccountsConfig{
			BcryptCost: 4,
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-32-chars-long!!",
			Issuer:       "test-issuer",
			AccessExpiry: 15 * time.Minute,
		},
		RefreshToken: config.RefreshTokenConfig{
			Expiry:          720 * time.Hour,
			TokenLength:     32,
			CleanupInterval: 0,
			RetentionPeriod: 90 * 24 * time.Hour,
		},
		Permissions: config.PermissionsConfig{
			CacheTTL: 60 * time.Second,
		},
		OTP: config.OTPConfig{
			Enabled: true,
			Issuer:  "Test App",
		},
		Audit: config.AuditConfig{
			DefaultPageSize: 20,
			MaxPageSize:     200,
		},
	}
}
