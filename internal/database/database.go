package database

import (
	"fmt"

	"github.com/ksred/wager-api/internal/database/migrations"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/internal/wallet"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "wager.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddBetIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&wallet.Balance{},
		&oracle.PricePoint{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
