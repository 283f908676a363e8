package settlement

import (
	"errors"
	"time"

	"github.com/ksred/wager-api/internal/betting"
	"github.com/ksred/wager-api/internal/wallet"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetBet retrieves a bet by its ID
func (d *Database) GetBet(betID string) (*betting.Bet, error) {
	var bet betting.Bet
	if err := d.db.Where("bet_id = ?", betID).First(&bet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, betting.ErrBetNotFound
		}
		return nil, err
	}
	return &bet, nil
}

// GetDueBets selects all pending bets whose expiry has passed
func (d *Database) GetDueBets(now time.Time) ([]betting.Bet, error) {
	var bets []betting.Bet
	if err := d.db.Where("status = ? AND expires_at <= ?", betting.StatusPending, now).
		Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

// SettleBet applies a bet's outcome and the matching balance effect in one
// transaction. The status transition is conditional on the bet still being
// pending, so overlapping ticks settle each bet at most once; the loser of
// the race gets ErrBetNotPending and must treat it as a no-op.
func (d *Database) SettleBet(bet *betting.Bet, won bool, finalPrice, payout float64, resolvedAt time.Time) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	status := betting.StatusLost
	if won {
		status = betting.StatusWon
	}

	claim := tx.Model(&betting.Bet{}).
		Where("bet_id = ? AND status = ?", bet.BetID, betting.StatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"final_price": finalPrice,
			"payout":      payout,
			"resolved_at": resolvedAt,
		})
	if claim.Error != nil {
		tx.Rollback()
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		tx.Rollback()
		return betting.ErrBetNotPending
	}

	var update *gorm.DB
	if won {
		// All right-hand sides read the pre-update row, so best_streak
		// sees the same win_streak value the increment does.
		update = tx.Model(&wallet.Balance{}).
			Where("user_id = ?", bet.UserID).
			Updates(map[string]interface{}{
				"amount":      gorm.Expr("amount + ?", payout),
				"total_won":   gorm.Expr("total_won + ?", payout),
				"win_streak":  gorm.Expr("win_streak + 1"),
				"best_streak": gorm.Expr("MAX(best_streak, win_streak + 1)"),
			})
	} else {
		update = tx.Model(&wallet.Balance{}).
			Where("user_id = ?", bet.UserID).
			Updates(map[string]interface{}{
				"total_lost": gorm.Expr("total_lost + ?", bet.Stake),
				"win_streak": 0,
			})
	}
	if update.Error != nil {
		tx.Rollback()
		return update.Error
	}

	return tx.Commit().Error
}
