package store

import (
	"context"

	"gorm.io/gorm"
)

// LogRepository appends and reads integration audit entries.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a repository over db.
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Append inserts one entry.
func (r *LogRepository) Append(ctx context.Context, entry *IntegrationLog) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error, "appending integration log")
}

// Recent returns up to limit entries for provider, newest first. An empty
// provider returns entries of every provider.
func (r *LogRepository) Recent(ctx context.Context, provider string, limit int) ([]IntegrationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	var entries []IntegrationLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, translate(err, "listing integration logs")
	}
	return entries, nil
}
