package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *config.Config) {
	t.Helper()
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &Entry{})
	return NewService(cfg, db, nil), db, cfg
}

func seedEntry(t *testing.T, db *gorm.DB, entry Entry) Entry {
	t.Helper()
	require.NoError(t, db.Create(&entry).Error)
	if !entry.CreatedAt.IsZero() {
		require.NoError(t, db.Model(&Entry{}).
			Where("id = ?", entry.ID).
			Update("created_at", entry.CreatedAt).Error)
	}
	return entry
}

func TestService_Record(t *testing.T) {
	t.Run("persists entry with parsed user agent", func(t *testing.T) {
		service, db, _ := newTestService(t)

		err := service.Record(RecordParams{
			AdminAccountID: 1,
			Action:         "ban_user",
			EntityType:     "account",
			EntityID:       "42",
			EntityName:     "spammer99",
			Details:        "repeated spam in comments",
			IPAddress:      "203.0.113.7",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Status:         StatusSuccess,
		})
		require.NoError(t, err)

		var entry Entry
		require.NoError(t, db.First(&entry).Error)
		assert.Equal(t, uint(1), entry.AdminAccountID)
		assert.Equal(t, "ban_user", entry.Action)
		assert.Equal(t, StatusSuccess, entry.Status)
		assert.Equal(t, "Chrome", entry.Browser)
		assert.Equal(t, "Windows", entry.OS)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	t.Run("status defaults to success", func(t *testing.T) {
		service, db, _ := newTestService(t)

		require.NoError(t, service.Record(RecordParams{
			AdminAccountID: 1,
			Action:         "update_settings",
		}))

		var entry Entry
		require.NoError(t, db.First(&entry).Error)
		assert.Equal(t, StatusSuccess, entry.Status)
	})
}

func TestService_Query(t *testing.T) {
	service, db, _ := newTestService(t)

	now := time.Now()
	service.SetClock(func() time.Time { return now })

	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", EntityName: "spammer99", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -1)})
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", EntityName: "troll7", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -3)})
	seedEntry(t, db, Entry{AdminAccountID: 2, Action: "delete_post", EntityName: "spam thread", Status: StatusFailure, CreatedAt: now.AddDate(0, 0, -2)})
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", EntityName: "oldtimer", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -30)})

	t.Run("day window with action filter, newest first", func(t *testing.T) {
		entries, total, err := service.Query(QueryFilters{Days: 7, Action: "ban_user"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, entries, 2)
		assert.Equal(t, "spammer99", entries[0].EntityName)
		assert.Equal(t, "troll7", entries[1].EntityName)
	})

	t.Run("total count independent of page size", func(t *testing.T) {
		entries, total, err := service.Query(QueryFilters{Days: 7, Action: "ban_user", PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "spammer99", entries[0].EntityName)

		entries, total, err = service.Query(QueryFilters{Days: 7, Action: "ban_user", PageSize: 1, Page: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "troll7", entries[0].EntityName)
	})

	t.Run("admin filter", func(t *testing.T) {
		entries, total, err := service.Query(QueryFilters{AdminAccountID: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "delete_post", entries[0].Action)
	})

	t.Run("free-text search", func(t *testing.T) {
		entries, total, err := service.Query(QueryFilters{Search: "spam"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, entries, 2)
	})

	t.Run("page size clamped to maximum", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Audit.MaxPageSize = 2
		clamped := NewService(cfg, db, nil)
		clamped.SetClock(func() time.Time { return now })

		entries, total, err := clamped.Query(QueryFilters{PageSize: 500})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, entries, 2)
	})
}

func TestService_Stats(t *testing.T) {
	service, db, _ := newTestService(t)

	now := time.Now()
	service.SetClock(func() time.Time { return now })

	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -1)})
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -2)})
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", Status: StatusFailure, CreatedAt: now.AddDate(0, 0, -1)})
	seedEntry(t, db, Entry{AdminAccountID: 2, Action: "delete_post", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -20)})

	stats, err := service.Stats(7)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, ActionStat{Action: "ban_user", Status: StatusFailure, Count: 1}, stats[0])
	assert.Equal(t, ActionStat{Action: "ban_user", Status: StatusSuccess, Count: 2}, stats[1])
}

func TestService_Export(t *testing.T) {
	service, db, _ := newTestService(t)

	now := time.Now()
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", EntityName: "spammer99", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -1)})
	seedEntry(t, db, Entry{AdminAccountID: 2, Action: "delete_post", EntityName: "spam thread", Status: StatusFailure, CreatedAt: now.AddDate(0, 0, -2)})
	seedEntry(t, db, Entry{AdminAccountID: 1, Action: "ban_user", EntityName: "out of range", Status: StatusSuccess, CreatedAt: now.AddDate(0, 0, -10)})

	t.Run("csv payload covers the range, newest first", func(t *testing.T) {
		payload, err := service.Export(now.AddDate(0, 0, -7), now, "csv")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "admin_account_id")
		assert.Contains(t, lines[1], "ban_user")
		assert.Contains(t, lines[2], "delete_post")
		assert.NotContains(t, string(payload), "out of range")
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := service.Export(now, now.AddDate(0, 0, -7), "csv")
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("unknown format rejected", func(t *testing.T) {
		_, err := service.Export(now.AddDate(0, 0, -7), now, "xlsx")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}
