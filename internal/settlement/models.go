package settlement

import (
	"errors"
	"time"
)

// ErrBetNotDue means the bet's expiry has not been reached yet
var ErrBetNotDue = errors.New("bet has not expired yet")

// Result reports the outcome of a settled bet
type Result struct {
	BetID            string    `json:"bet_id"`
	UserID           int64     `json:"user_id"`
	Symbol           string    `json:"symbol"`
	Direction        string    `json:"direction"`
	Stake            float64   `json:"stake"`
	PriceAtPlacement float64   `json:"price_at_placement"`
	FinalPrice       float64   `json:"final_price"`
	Won              bool      `json:"won"`
	Payout           float64   `json:"payout"`
	Status           string    `json:"status"`
	ResolvedAt       time.Time `json:"resolved_at"`
}
