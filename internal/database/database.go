package database

import (
	"fmt"
	"log"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxIdleConns    = 5
	maxOpenConns    = 20
	connMaxLifetime = time.Hour
)

// Connect opens a Postgres connection pool
func Connect(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	log.Println("✅ Database connected")
	return db, nil
}

// Migrate creates or updates the session tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Session{}, &models.Message{}); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	log.Println("✅ Database migrated")
	return nil
}
