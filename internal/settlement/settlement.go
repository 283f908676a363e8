package settlement

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/wager-api/internal/betting"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Margin for exact predictions: within 1% of the target counts as a hit
const exactMarginFraction = 0.01

// PriceSource supplies the final price a bet resolves against
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (*oracle.Quote, error)
}

// Service resolves expired bets against fresh quotes
type Service struct {
	db     *Database
	prices PriceSource
	now    func() time.Time
}

// NewService creates a new settlement service
func NewService(gormDB *gorm.DB, prices PriceSource) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		prices: prices,
		now:    time.Now,
	}
}

// ResolveBet settles a single due bet
// Only pending bets past their expiry are eligible. The status transition
// and balance effect are applied at most once even under concurrent calls.
func (s *Service) ResolveBet(ctx context.Context, betID string) (*Result, error) {
	logger := log.With().
		Str("bet_id", betID).
		Str("service", "settlement").
		Logger()

	bet, err := s.db.GetBet(betID)
	if err != nil {
		return nil, err
	}
	if bet.Status != betting.StatusPending {
		return nil, betting.ErrBetNotPending
	}

	now := s.now().UTC()
	if now.Before(bet.ExpiresAt) {
		return nil, ErrBetNotDue
	}

	quote, err := s.prices.GetPrice(ctx, bet.Symbol)
	if err != nil {
		logger.Error().Err(err).Str("symbol", bet.Symbol).Msg("failed to fetch final price")
		return nil, err
	}

	finalPrice := quote.Price
	won := decideOutcome(bet, finalPrice)

	payout := 0.0
	if won {
		payout = bet.Stake * bet.Multiplier
	}

	if err := s.db.SettleBet(bet, won, finalPrice, payout, now); err != nil {
		return nil, err
	}

	status := betting.StatusLost
	if won {
		status = betting.StatusWon
	}

	logger.Info().
		Int64("user_id", bet.UserID).
		Str("symbol", bet.Symbol).
		Str("direction", bet.Direction).
		Bool("won", won).
		Float64("final_price", finalPrice).
		Float64("payout", payout).
		Msg("bet resolved")

	return &Result{
		BetID:            bet.BetID,
		UserID:           bet.UserID,
		Symbol:           bet.Symbol,
		Direction:        bet.Direction,
		Stake:            bet.Stake,
		PriceAtPlacement: bet.PriceAtPlacement,
		FinalPrice:       finalPrice,
		Won:              won,
		Payout:           payout,
		Status:           status,
		ResolvedAt:       now,
	}, nil
}

// decideOutcome applies the win condition for the bet's direction
func decideOutcome(bet *betting.Bet, finalPrice float64) bool {
	switch bet.Direction {
	case betting.DirectionUp:
		return finalPrice > bet.PriceAtPlacement
	case betting.DirectionDown:
		return finalPrice < bet.PriceAtPlacement
	case betting.DirectionExact:
		if bet.TargetPrice == nil {
			return false
		}
		margin := *bet.TargetPrice * exactMarginFraction
		return math.Abs(finalPrice-*bet.TargetPrice) <= margin
	default:
		return false
	}
}

// GetDB exposes the settlement database for the background processor
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ResolveBetHandler handles POST requests to force-resolve a due bet
// Requires internal authentication
// URL parameter: bet_id
func (h *GinHandlers) ResolveBetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		betID := c.Param("bet_id")

		result, err := h.service.ResolveBet(c.Request.Context(), betID)
		switch {
		case errors.Is(err, betting.ErrBetNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, betting.ErrBetNotPending), errors.Is(err, ErrBetNotDue):
			response.Conflict(c, err.Error())
		default:
			response.Handle(c, result, err)
		}
	}
}
