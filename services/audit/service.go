package audit

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mileusna/useragent"
	"github.com/pulsefeed/authkit/config"
	"github.com/pulsefeed/authkit/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidDateRange  = errors.New("end date must not precede start date")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// RecordParams describes one privileged action to be persisted.
type RecordParams struct {
	AdminAccountID uint
	Action         string
	EntityType     string
	EntityID       string
	EntityName     string
	Details        string
	IPAddress      string
	UserAgent      string
	Status         Status
}

// QueryFilters narrows a Query call. Zero values mean "no filter";
// Days bounds results to a trailing window ending now.
type QueryFilters struct {
	AdminAccountID uint
	Action         string
	Days           int
	Search         string
	Page           int
	PageSize       int
}

// ActionStat is one aggregated row from Stats.
type ActionStat struct {
	Action string `json:"action"`
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// Service persists and reads the append-only activity log. Callers treat
// Record failures as advisory: the admin action itself has already
// happened and must not be rolled back because the log write failed.
type Service struct {
	config *config.Config
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for trailing-window queries.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Record(params RecordParams) error {
	entry := Entry{
		AdminAccountID: params.AdminAccountID,
		Action:         params.Action,
		EntityType:     params.EntityType,
		EntityID:       params.EntityID,
		EntityName:     params.EntityName,
		Details:        params.Details,
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		Status:         params.Status,
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	if params.UserAgent != "" {
		ua := useragent.Parse(params.UserAgent)
		entry.Browser = ua.Name
		entry.OS = ua.OS
	}

	if err := s.db.Create(&entry).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to record audit entry",
				zap.Uint("admin_account_id", params.AdminAccountID),
				zap.String("action", params.Action),
				zap.Error(err))
		}
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("audit entry recorded",
			zap.Uint("admin_account_id", params.AdminAccountID),
			zap.String("action", params.Action),
			zap.String("status", string(entry.Status)))
	}

	return nil
}

// Query returns one page of entries, newest first, along with the total
// count across all pages for the same filters.
func (s *Service) Query(filters QueryFilters) ([]Entry, int64, error) {
	query := s.filtered(filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = s.config.Audit.DefaultPageSize
	}
	if pageSize > s.config.Audit.MaxPageSize {
		pageSize = s.config.Audit.MaxPageSize
	}

	var entries []Entry
	err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}

	return entries, total, nil
}

// Stats aggregates entry counts by action and status over a trailing
// day-window.
func (s *Service) Stats(days int) ([]ActionStat, error) {
	if days < 1 {
		days = 1
	}
	since := s.now().AddDate(0, 0, -days)

	var stats []ActionStat
	err := s.db.Model(&Entry{}).
		Select("action, status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("action, status").
		Order("action, status").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}

	return stats, nil
}

// Export serializes all entries in [start, end] newest first. CSV is the
// only supported format.
func (s *Service) Export(start, end time.Time, format string) ([]byte, error) {
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	if format != "csv" {
		return nil, ErrUnsupportedFormat
	}

	var entries []Entry
	err := s.db.
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for export: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "admin_account_id", "action", "entity_type", "entity_id", "entity_name", "details", "ip_address", "status", "created_at"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			strconv.FormatUint(uint64(entry.ID), 10),
			strconv.FormatUint(uint64(entry.AdminAccountID), 10),
			entry.Action,
			entry.EntityType,
			entry.EntityID,
			entry.EntityName,
			entry.Details,
			entry.IPAddress,
			string(entry.Status),
			entry.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush export: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("audit export generated",
			zap.Int("entry_count", len(entries)),
			zap.Time("start", start),
			zap.Time("end", end))
	}

	return buf.Bytes(), nil
}

func (s *Service) filtered(filters QueryFilters) *gorm.DB {
	query := s.db.Model(&Entry{})

	if filters.AdminAccountID != 0 {
		query = query.Where("admin_account_id = ?", filters.AdminAccountID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Days > 0 {
		since := s.now().AddDate(0, 0, -filters.Days)
		query = query.Where("created_at >= ?", since)
	}
	if filters.Search != "" {
		like := "%" + filters.Search + "%"
		query = query.Where("entity_name LIKE ? OR details LIKE ? OR entity_id LIKE ?", like, like, like)
	}

	return query
}
