package betting

import (
	"errors"
	"time"

	"github.com/ksred/wager-api/internal/wallet"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateBetWithDebit debits the stake and inserts the bet in one
// transaction. The debit is conditional on sufficient funds, so a
// concurrent spend on the same balance cannot drive the amount negative.
func (d *Database) CreateBetWithDebit(bet *Bet) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&wallet.Balance{}).
		Where("user_id = ? AND amount >= ?", bet.UserID, bet.Stake).
		Updates(map[string]interface{}{
			"amount":        gorm.Expr("amount - ?", bet.Stake),
			"total_wagered": gorm.Expr("total_wagered + ?", bet.Stake),
			"total_bets":    gorm.Expr("total_bets + 1"),
		})
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return ErrInsufficientBalance
	}

	if err := tx.Create(bet).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetBetByIDAndUser retrieves a bet owned by the given user
func (d *Database) GetBetByIDAndUser(betID string, userID int64) (*Bet, error) {
	var bet Bet
	if err := d.db.Where("bet_id = ? AND user_id = ?", betID, userID).First(&bet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, err
	}
	return &bet, nil
}

// ListBets returns the user's bets, newest first, optionally filtered by
// status
func (d *Database) ListBets(userID int64, status string, limit int) ([]Bet, error) {
	query := d.db.Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var bets []Bet
	if err := query.Order("created_at DESC").Limit(limit).Find(&bets).Error; err != nil {
		return nil, err
	}
	return bets, nil
}

// CancelBet moves a pending, unexpired bet to cancelled and refunds the
// stake. The status transition is conditional so a cancel racing the
// settlement engine resolves to exactly one winner.
func (d *Database) CancelBet(betID string, userID int64, now time.Time) (*Bet, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var bet Bet
	if err := tx.Where("bet_id = ? AND user_id = ?", betID, userID).First(&bet).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, err
	}

	result := tx.Model(&Bet{}).
		Where("bet_id = ? AND status = ? AND expires_at > ?", betID, StatusPending, now).
		Updates(map[string]interface{}{
			"status":      StatusCancelled,
			"resolved_at": now,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrBetNotPending
	}

	if err := tx.Model(&wallet.Balance{}).
		Where("user_id = ?", userID).
		Update("amount", gorm.Expr("amount + ?", bet.Stake)).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	bet.Status = StatusCancelled
	bet.ResolvedAt = &now
	return &bet, nil
}

// EnsureBalance lazily creates the user's balance row so the conditional
// debit has something to match against
func (d *Database) EnsureBalance(userID int64) error {
	var balance wallet.Balance
	return d.db.Where(wallet.Balance{UserID: userID}).
		Attrs(wallet.Balance{UserID: userID, Amount: wallet.StartingBalance}).
		FirstOrCreate(&balance).Error
}
