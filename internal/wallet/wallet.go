package wallet

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/wager-api/internal/auth"
	"github.com/ksred/wager-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Daily bonus amounts, tiered by the claimant's current balance
const (
	bonusBase       = 100.0
	bonusLowFunds   = 200.0
	bonusHighFunds  = 50.0
	lowFundsCutoff  = 50.0
	highFundsCutoff = 5000.0
)

// Service manages virtual balances, the daily bonus and the leaderboard
type Service struct {
	db  *Database
	now func() time.Time
}

// NewService creates a new wallet service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:  NewDatabase(gormDB),
		now: time.Now,
	}
}

// GetBalance returns the user's balance summary, creating the balance on
// first access
func (s *Service) GetBalance(userID int64) (*BalanceSummary, error) {
	balance, err := s.db.GetOrCreateBalance(userID)
	if err != nil {
		return nil, err
	}
	return summarize(balance), nil
}

// ClaimDailyBonus grants the once-per-UTC-day top-up
// The bonus amount depends on the current balance: users running low get
// more, users sitting on a large stack get less. A repeat claim within the
// same UTC day grants nothing and mutates nothing.
func (s *Service) ClaimDailyBonus(userID int64) (*BonusResult, error) {
	logger := log.With().
		Int64("user_id", userID).
		Str("service", "wallet").
		Logger()

	balance, err := s.db.GetOrCreateBalance(userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	amount := bonusBase
	if balance.Amount < lowFundsCutoff {
		amount = bonusLowFunds
	} else if balance.Amount > highFundsCutoff {
		amount = bonusHighFunds
	}

	granted, err := s.db.ClaimBonus(userID, amount, now, dayStart)
	if err != nil {
		return nil, err
	}
	if !granted {
		return &BonusResult{Granted: false}, nil
	}

	logger.Info().Float64("amount", amount).Msg("daily bonus granted")

	return &BonusResult{Amount: amount, Granted: true}, nil
}

// TopBalances returns a read-only snapshot of the richest users
func (s *Service) TopBalances(limit int) ([]BalanceSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	balances, err := s.db.TopBalances(limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]BalanceSummary, len(balances))
	for i := range balances {
		summaries[i] = *summarize(&balances[i])
	}
	return summaries, nil
}

// GinHandlers contains HTTP handlers for balance endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetBalanceHandler handles GET requests for the caller's balance summary
func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		summary, err := h.service.GetBalance(userID)
		response.Handle(c, summary, err)
	}
}

// ClaimBonusHandler handles POST requests to claim the daily bonus
func (h *GinHandlers) ClaimBonusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		result, err := h.service.ClaimDailyBonus(userID)
		response.Handle(c, result, err)
	}
}

// LeaderboardHandler handles GET requests for the top balances
// Query parameter: limit (default 10)
func (h *GinHandlers) LeaderboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 10
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				response.BadRequest(c, "limit must be a positive integer")
				return
			}
			limit = parsed
		}

		summaries, err := h.service.TopBalances(limit)
		response.Handle(c, summaries, err)
	}
}
