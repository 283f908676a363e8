package wallet

import (
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOrCreateBalance fetches a user's balance, creating it with the
// starting amount on first access
func (d *Database) GetOrCreateBalance(userID int64) (*Balance, error) {
	var balance Balance
	err := d.db.Where(Balance{UserID: userID}).
		Attrs(Balance{UserID: userID, Amount: StartingBalance}).
		FirstOrCreate(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// ClaimBonus credits the bonus amount if no bonus was claimed on or after
// dayStart. The eligibility check and credit are one conditional update so
// concurrent claims cannot both succeed.
func (d *Database) ClaimBonus(userID int64, amount float64, now, dayStart time.Time) (bool, error) {
	result := d.db.Model(&Balance{}).
		Where("user_id = ? AND (last_bonus_at IS NULL OR last_bonus_at < ?)", userID, dayStart).
		Updates(map[string]interface{}{
			"amount":        gorm.Expr("amount + ?", amount),
			"last_bonus_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TopBalances returns the highest balances, ties broken by user ID for a
// stable ordering
func (d *Database) TopBalances(limit int) ([]Balance, error) {
	var balances []Balance
	if err := d.db.Order("amount DESC, user_id ASC").
		Limit(limit).
		Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}
