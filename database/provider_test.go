package database

import (
	"testing"

	"github.com/pulsefeed/authkit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestProvideDatabase(t *testing.T) {
	t.Run("sqlite in-memory", func(t *testing.T) {
		cfg := config.Config{
			Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
		}

		db, err := ProvideDatabase(cfg, nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, db)
	})

	t.Run("auto-migrate registered models", func(t *testing.T) {
		cfg := config.Config{
			Database: config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", AutoMigrate: true},
		}

		db, err := ProvideDatabase(cfg, WithModels(&testModel{}), nil)
		require.NoError(t, err)
		assert.True(t, db.Migrator().HasTable(&testModel{}))
	})

	t.Run("unsupported driver", func(t *testing.T) {
		cfg := config.Config{
			Database: config.DatabaseConfig{Driver: "oracle", DSN: "whatever"},
		}

		_, err := ProvideDatabase(cfg, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}
