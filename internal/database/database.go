package database

import (
	"fmt"
	"os"

	"github.com/stocksim/stocksim-api/internal/database/migrations"
	"github.com/stocksim/stocksim-api/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection. Postgres is
// used when DATABASE_URL is set, otherwise a local sqlite file.
func NewDatabase() (*gorm.DB, error) {
	var dialector gorm.Dialector
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		path := os.Getenv("DATABASE_PATH")
		if path == "" {
			path = "stocksim.db"
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, Migrate(db)
}

// NewTestDatabase opens a throwaway sqlite database at path with the full
// schema applied. Used by tests.
func NewTestDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, Migrate(db)
}

// Migrate applies the schema and seed migrations.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.User{},
		&types.Funds{},
		&types.Holding{},
		&types.Position{},
		&types.Order{},
	)
	if err != nil {
		return err
	}

	if err := migrations.SeedWatchlist(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
