package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fleet-tracking/internal/models"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Open opens a gorm connection for backend and migrates the schema.
func Open(backend, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch backend {
	case BackendPostgres:
		dialector = postgres.Open(dsn)
	case BackendSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql backend %q", backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if backend == BackendSQLite {
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := bootstrap(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// ConnectWithRetry opens a database connection with retry.
func ConnectWithRetry(backend, dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := Open(backend, dsn)
		if err == nil {
			return db, nil
		}

		lastErr = err
		if i < attempts {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

func bootstrap(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.CurrentPosition{},
		&models.PositionHistoryEntry{},
		&models.TrackingSession{},
		&models.Worker{},
		&models.Route{},
		&models.Vehicle{},
	)
}
