// Package store persists integration configs, shipping methods and the
// integration audit log with gorm.
package store

import (
	"errors"
	"fmt"

	"github.com/tournevent/integrations/pkg/integration"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate creates or updates every table owned by this package.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&IntegrationConfig{},
		&ShippingMethod{},
		&ShippingRule{},
		&IntegrationLog{},
	)
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return integration.NewError("", integration.KindNotFound, what+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return integration.NewError("", integration.KindConflict, what+" already exists").WithCause(err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
