package migrations

import (
	"github.com/ksred/wager-api/internal/betting"
	"gorm.io/gorm"
)

// AddBetIndexes creates the bets table and the indexes the settlement scan
// and bet listing depend on
func AddBetIndexes(db *gorm.DB) error {
	if err := db.AutoMigrate(&betting.Bet{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index driving the settlement scan
		// (status = pending AND expires_at <= now)
		`CREATE INDEX IF NOT EXISTS idx_bets_status_expires
		 ON bets(status, expires_at)`,

		// Index for per-user bet listings, newest first
		`CREATE INDEX IF NOT EXISTS idx_bets_user_created
		 ON bets(user_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
