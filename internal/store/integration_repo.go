package store

import (
	"context"
	"time"

	"github.com/tournevent/integrations/pkg/integration"
	"gorm.io/gorm"
)

// IntegrationRepository reads and writes IntegrationConfig rows.
type IntegrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a repository over db.
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// List returns the configs of one category, highest priority first and
// oldest first within a priority. An empty category lists everything.
func (r *IntegrationRepository) List(ctx context.Context, category Category) ([]IntegrationConfig, error) {
	var configs []IntegrationConfig
	q := r.db.WithContext(ctx).Order("priority DESC").Order("created_at ASC").Order("id ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&configs).Error; err != nil {
		return nil, translate(err, "listing integrations")
	}
	return configs, nil
}

// Get returns one config by id.
func (r *IntegrationRepository) Get(ctx context.Context, id string) (*IntegrationConfig, error) {
	var cfg IntegrationConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return nil, translate(err, "integration "+id)
	}
	return &cfg, nil
}

// GetByProvider returns the config of provider within category.
func (r *IntegrationRepository) GetByProvider(ctx context.Context, category Category, provider string) (*IntegrationConfig, error) {
	var cfg IntegrationConfig
	err := r.db.WithContext(ctx).
		Where("category = ? AND provider = ?", category, provider).
		First(&cfg).Error
	if err != nil {
		return nil, translate(err, "integration "+provider)
	}
	return &cfg, nil
}

// Create inserts cfg. A second row for the same category and provider
// fails with a Conflict error.
func (r *IntegrationRepository) Create(ctx context.Context, cfg *IntegrationConfig) error {
	return translate(r.db.WithContext(ctx).Create(cfg).Error, "integration "+cfg.Provider)
}

// Update saves every column of cfg.
func (r *IntegrationRepository) Update(ctx context.Context, cfg *IntegrationConfig) error {
	return translate(r.db.WithContext(ctx).Save(cfg).Error, "integration "+cfg.Provider)
}

// Delete removes the config with id.
func (r *IntegrationRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&IntegrationConfig{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "integration "+id)
	}
	if res.RowsAffected == 0 {
		return integration.NewError("", integration.KindNotFound, "integration "+id+" not found")
	}
	return nil
}

// SetActive flips the active flag of one config.
func (r *IntegrationRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&IntegrationConfig{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return translate(res.Error, "integration "+id)
	}
	if res.RowsAffected == 0 {
		return integration.NewError("", integration.KindNotFound, "integration "+id+" not found")
	}
	return nil
}

// RecordTest stores the outcome of a connection test.
func (r *IntegrationRepository) RecordTest(ctx context.Context, id string, success bool, message string, at time.Time) error {
	status := TestStatusFailed
	if success {
		status = TestStatusSuccess
	}
	err := r.db.WithContext(ctx).Model(&IntegrationConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"test_status":    status,
			"test_message":   message,
			"last_tested_at": at,
		}).Error
	return translate(err, "integration "+id)
}
