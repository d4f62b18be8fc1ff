// Package storage is the gorm-backed persistence layer. Every component
// declares the narrow store interface it needs; *Store satisfies all of them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for wiring that needs it (migrations, health checks).
func (s *Store) DB() *gorm.DB { return s.db }

// ConnectDB opens the configured driver. driver is "sqlite" or "postgres".
func ConnectDB(driver, dsn, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver != "postgres" {
		// sqlite serialises writers anyway; one connection keeps :memory: databases shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates the schema and the partial unique index that is the last
// line of defence against double booking.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Guest{},
		&models.Room{},
		&models.Booking{},
		&models.ServiceCharge{},
		&models.Payment{},
		&models.HousekeepingTask{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_room_stay
		ON bookings (room_id, check_in, check_out)
		WHERE status <> 'cancelled' AND deleted_at IS NULL`).Error
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

// duplicate folds unique-index violations into apperr.ErrDuplicate.
func duplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value") {
		return fmt.Errorf("%w: %v", apperr.ErrDuplicate, err)
	}
	return err
}
