package store

import (
	"context"

	"github.com/tournevent/integrations/pkg/rules"
	"gorm.io/gorm"
)

// MethodRepository persists shipping methods and serves them to the rule
// engine.
type MethodRepository struct {
	db *gorm.DB
}

var _ rules.MethodSource = (*MethodRepository)(nil)

// NewMethodRepository creates a repository over db.
func NewMethodRepository(db *gorm.DB) *MethodRepository {
	return &MethodRepository{db: db}
}

// Methods returns the active methods in scope: platform-wide ones when
// sellerID is empty, otherwise only that seller's.
func (r *MethodRepository) Methods(ctx context.Context, sellerID string) ([]rules.Method, error) {
	q := r.db.WithContext(ctx).
		Preload("Rules", func(db *gorm.DB) *gorm.DB {
			return db.Order("priority DESC").Order("created_at ASC")
		}).
		Where("is_active = ?", true).
		Order("name ASC")
	if sellerID == "" {
		q = q.Where("seller_id IS NULL")
	} else {
		q = q.Where("seller_id = ?", sellerID)
	}

	var rows []ShippingMethod
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err, "listing shipping methods")
	}

	methods := make([]rules.Method, 0, len(rows))
	for _, row := range rows {
		methods = append(methods, row.ToMethod())
	}
	return methods, nil
}

// Save inserts or replaces a method together with its rules and returns
// the stored id.
func (r *MethodRepository) Save(ctx context.Context, m rules.Method) (string, error) {
	row := ShippingMethodFrom(m)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID != "" {
			if err := tx.Where("method_id = ?", row.ID).Delete(&ShippingRule{}).Error; err != nil {
				return err
			}
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(&row).Error
	})
	if err != nil {
		return "", translate(err, "shipping method "+m.Name)
	}
	return row.ID, nil
}

// Delete removes a method and its rules.
func (r *MethodRepository) Delete(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("method_id = ?", id).Delete(&ShippingRule{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ShippingMethod{}, "id = ?", id).Error
	}), "shipping method "+id)
}
