package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aegiscore/aegis/internal/models"
)

// LogStore handles the immutable request audit trail.
type LogStore struct {
	db *gorm.DB
}

func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

func (s *LogStore) Create(ctx context.Context, log *models.RequestLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

// Recent returns the user's latest log entries, newest first.
func (s *LogStore) Recent(ctx context.Context, userID string, limit int) ([]models.RequestLog, error) {
	var logs []models.RequestLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// DailyUsage is one day of aggregated request counts.
type DailyUsage struct {
	Date          time.Time `json:"date"`
	Requests      int       `json:"requests"`
	ToxicDetected int       `json:"toxic_detected"`
}

// UsageStats aggregates a user's request logs for the stats endpoint.
type UsageStats struct {
	RequestsToday     int          `json:"requests_today"`
	RequestsThisMonth int          `json:"requests_this_month"`
	Last30Days        []DailyUsage `json:"last_30_days"`
}

// Stats aggregates the last 30 days of a user's audit trail.
func (s *LogStore) Stats(ctx context.Context, userID string, now time.Time) (*UsageStats, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	// Same window as the daily buckets: today and the 29 days before it.
	since := today.AddDate(0, 0, -29)

	var logs []models.RequestLog
	if err := s.db.WithContext(ctx).
		Select("created_at", "is_toxic").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Find(&logs).Error; err != nil {
		return nil, err
	}

	stats := &UsageStats{RequestsThisMonth: len(logs)}
	byDay := make(map[time.Time]*DailyUsage, 30)
	for i := 0; i < 30; i++ {
		day := today.AddDate(0, 0, -i)
		byDay[day] = &DailyUsage{Date: day}
	}

	for _, log := range logs {
		day := log.CreatedAt.UTC().Truncate(24 * time.Hour)
		usage, ok := byDay[day]
		if !ok {
			continue
		}
		usage.Requests++
		if log.IsToxic != nil && *log.IsToxic {
			usage.ToxicDetected++
		}
		if day.Equal(today) {
			stats.RequestsToday++
		}
	}

	stats.Last30Days = make([]DailyUsage, 0, 30)
	for i := 29; i >= 0; i-- {
		stats.Last30Days = append(stats.Last30Days, *byDay[today.AddDate(0, 0, -i)])
	}
	return stats, nil
}
