package db

import (
	"fmt"
	"log"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/confessly/internal/models"
)

const defaultDatabaseURL = "sqlite://confessly.db"

// Init opens a GORM connection for databaseURL, which must start with
// 'postgres://' or 'sqlite://'. An empty URL falls back to a local SQLite file.
func Init(databaseURL string, debug bool) (*gorm.DB, error) {
	if databaseURL == "" {
		databaseURL = defaultDatabaseURL
		log.Printf("DATABASE_URL not set, defaulting to '%s'", databaseURL)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		// pgx accepts the URL form directly.
		dialector = postgres.Open(databaseURL)
		log.Println("Connecting to PostgreSQL database...")
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		dialector = sqlite.Open(dsn)
		log.Println("Connecting to SQLite database at", dsn)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL prefix: must start with 'postgres://' or 'sqlite://'")
	}

	logMode := logger.Silent
	if debug {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dialector.Name() == "sqlite" {
		// SQLite serialises writers anyway; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	log.Println("Database connection established.")
	return db, nil
}

// Migrate creates or updates the confession and comment tables.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(&models.Confession{}, &models.Comment{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("Migrations complete.")
	return nil
}
