package wallet

import (
	"time"

	"gorm.io/gorm"
)

// StartingBalance is the virtual amount a new user begins with
const StartingBalance = 1000.0

// Balance holds a user's virtual funds and lifetime betting statistics
// Created lazily on first access.
type Balance struct {
	gorm.Model   `json:"-"`
	UserID       int64      `gorm:"uniqueIndex" json:"user_id"`
	Amount       float64    `json:"amount"`
	TotalWagered float64    `json:"total_wagered"`
	TotalWon     float64    `json:"total_won"`
	TotalLost    float64    `json:"total_lost"`
	WinStreak    int        `json:"win_streak"`
	BestStreak   int        `json:"best_streak"`
	TotalBets    int        `json:"total_bets"`
	LastBonusAt  *time.Time `json:"last_bonus_at,omitempty"`
}

// BalanceSummary is the read projection returned to callers
type BalanceSummary struct {
	UserID       int64   `json:"user_id"`
	Amount       float64 `json:"amount"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`
	TotalLost    float64 `json:"total_lost"`
	WinStreak    int     `json:"win_streak"`
	BestStreak   int     `json:"best_streak"`
	TotalBets    int     `json:"total_bets"`
	WinRate      float64 `json:"win_rate"`
	ProfitLoss   float64 `json:"profit_loss"`
}

// BonusResult reports the outcome of a daily bonus claim
type BonusResult struct {
	Amount  float64 `json:"amount"`
	Granted bool    `json:"granted"`
}

func summarize(balance *Balance) *BalanceSummary {
	wagered := balance.TotalWagered
	if wagered < 1 {
		wagered = 1
	}
	return &BalanceSummary{
		UserID:       balance.UserID,
		Amount:       balance.Amount,
		TotalWagered: balance.TotalWagered,
		TotalWon:     balance.TotalWon,
		TotalLost:    balance.TotalLost,
		WinStreak:    balance.WinStreak,
		BestStreak:   balance.BestStreak,
		TotalBets:    balance.TotalBets,
		WinRate:      (balance.TotalWon / wagered) * 100,
		ProfitLoss:   balance.TotalWon - balance.TotalLost,
	}
}
