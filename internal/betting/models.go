package betting

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Bet directions
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionExact = "exact"
)

// Bet statuses. A bet leaves pending exactly once and never returns.
const (
	StatusPending   = "pending"
	StatusWon       = "won"
	StatusLost      = "lost"
	StatusCancelled = "cancelled"
)

// Allowed bet duration range in minutes
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 1440
)

var (
	ErrInvalidDirection    = errors.New("direction must be 'up', 'down' or 'exact'")
	ErrInvalidStake        = errors.New("stake must be positive")
	ErrMissingTargetPrice  = errors.New("target price required for exact predictions")
	ErrInvalidDuration     = errors.New("duration must be between 15 minutes and 24 hours")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBetNotFound         = errors.New("bet not found")
	ErrBetNotPending       = errors.New("bet is no longer pending")
)

// Bet is a user's wager on a symbol's price movement
type Bet struct {
	gorm.Model       `json:"-"`
	BetID            string     `gorm:"uniqueIndex" json:"bet_id"`
	UserID           int64      `gorm:"index" json:"user_id"`
	Symbol           string     `json:"symbol"`
	Direction        string     `json:"direction"` // up, down or exact
	Stake            float64    `json:"stake"`
	TargetPrice      *float64   `json:"target_price,omitempty"`
	PriceAtPlacement float64    `json:"price_at_placement"`
	Multiplier       float64    `json:"multiplier"`
	DurationMinutes  int        `json:"duration_minutes"`
	ExpiresAt        time.Time  `json:"expires_at"`
	Status           string     `json:"status"`
	FinalPrice       *float64   `json:"final_price,omitempty"`
	Payout           float64    `json:"payout"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PlaceBetRequest is the payload for placing a new bet
type PlaceBetRequest struct {
	Symbol          string   `json:"symbol"`
	Direction       string   `json:"direction"`
	Stake           float64  `json:"stake"`
	DurationMinutes int      `json:"duration_minutes"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
}

// PlaceBetResponse echoes the created bet with its frozen terms
type PlaceBetResponse struct {
	BetID            string    `json:"bet_id"`
	Symbol           string    `json:"symbol"`
	Direction        string    `json:"direction"`
	Stake            float64   `json:"stake"`
	TargetPrice      *float64  `json:"target_price,omitempty"`
	PriceAtPlacement float64   `json:"price_at_placement"`
	Multiplier       float64   `json:"multiplier"`
	ExpiresAt        time.Time `json:"expires_at"`
	PotentialPayout  float64   `json:"potential_payout"`
}
