// Package database owns the gorm connection and schema migrations.
package database

import (
	"fmt"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/config"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Initialize creates and configures the database connection.
func Initialize(cfg config.Config) (*gorm.DB, error) {
	databaseURL := cfg.DatabaseURL
	if databaseURL == "" {
		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
	}

	gormLogger := gormlogger.Default
	if cfg.Environment == "development" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connected")

	return db, nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Enable UUID extension for PostgreSQL
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		logger.Log.Warn("Could not create uuid-ossp extension: " + err.Error())
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Call{},
		&models.CallParticipant{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes creates performance indexes
func createIndexes(db *gorm.DB) error {
	db.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_initiator_created ON calls (initiator_id, created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_status ON calls (status) WHERE status <> 'ended'")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_call_participants_user ON call_participants (user_id, call_id)")
	return nil
}
