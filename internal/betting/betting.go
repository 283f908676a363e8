package betting

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/wager-api/internal/auth"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PriceSource supplies current quotes for bet placement
type PriceSource interface {
	Supported(symbol string) bool
	GetPrice(ctx context.Context, symbol string) (*oracle.Quote, error)
}

// Service handles bet placement and lifecycle operations other than
// settlement
type Service struct {
	db     *Database
	prices PriceSource
	now    func() time.Time
}

// NewService creates a new betting service
func NewService(gormDB *gorm.DB, prices PriceSource) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		prices: prices,
		now:    time.Now,
	}
}

// PlaceBet validates the request, freezes the bet's terms against the
// current price and atomically debits the stake
func (s *Service) PlaceBet(ctx context.Context, userID int64, req *PlaceBetRequest) (*PlaceBetResponse, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	if !s.prices.Supported(symbol) {
		return nil, oracle.ErrUnsupportedSymbol
	}
	if req.Direction != DirectionUp && req.Direction != DirectionDown && req.Direction != DirectionExact {
		return nil, ErrInvalidDirection
	}
	if req.Stake <= 0 {
		return nil, ErrInvalidStake
	}
	if req.Direction == DirectionExact && req.TargetPrice == nil {
		return nil, ErrMissingTargetPrice
	}
	if req.DurationMinutes < MinDurationMinutes || req.DurationMinutes > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}

	if err := s.db.EnsureBalance(userID); err != nil {
		return nil, err
	}

	quote, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bet := &Bet{
		BetID:            "BET_" + uuid.New().String(),
		UserID:           userID,
		Symbol:           symbol,
		Direction:        req.Direction,
		Stake:            req.Stake,
		TargetPrice:      req.TargetPrice,
		PriceAtPlacement: quote.Price,
		Multiplier:       multiplierFor(req.Direction, req.DurationMinutes),
		DurationMinutes:  req.DurationMinutes,
		ExpiresAt:        now.Add(time.Duration(req.DurationMinutes) * time.Minute),
		Status:           StatusPending,
	}

	if err := s.db.CreateBetWithDebit(bet); err != nil {
		return nil, err
	}

	log.Info().
		Str("bet_id", bet.BetID).
		Int64("user_id", userID).
		Str("symbol", symbol).
		Str("direction", bet.Direction).
		Float64("stake", bet.Stake).
		Float64("price_at_placement", bet.PriceAtPlacement).
		Str("service", "betting").
		Msg("bet placed")

	return &PlaceBetResponse{
		BetID:            bet.BetID,
		Symbol:           bet.Symbol,
		Direction:        bet.Direction,
		Stake:            bet.Stake,
		TargetPrice:      bet.TargetPrice,
		PriceAtPlacement: bet.PriceAtPlacement,
		Multiplier:       bet.Multiplier,
		ExpiresAt:        bet.ExpiresAt,
		PotentialPayout:  bet.Stake * bet.Multiplier,
	}, nil
}

// multiplierFor is the payout policy, fixed at placement time
// Exact predictions pay the most; short windows pay less than long ones.
func multiplierFor(direction string, durationMinutes int) float64 {
	switch {
	case direction == DirectionExact:
		return 10.0
	case durationMinutes <= 15:
		return 1.5
	case durationMinutes >= 240:
		return 3.0
	default:
		return 2.0
	}
}

// GetBet returns a single bet owned by the caller
func (s *Service) GetBet(userID int64, betID string) (*Bet, error) {
	return s.db.GetBetByIDAndUser(betID, userID)
}

// ListBets returns the user's bets, optionally filtered by status
func (s *Service) ListBets(userID int64, status string, limit int) ([]Bet, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.db.ListBets(userID, status, limit)
}

// CancelBet refunds a pending bet before its expiry
func (s *Service) CancelBet(userID int64, betID string) (*Bet, error) {
	bet, err := s.db.CancelBet(betID, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("bet_id", bet.BetID).
		Int64("user_id", userID).
		Float64("refund", bet.Stake).
		Str("service", "betting").
		Msg("bet cancelled")

	return bet, nil
}

// respond maps betting error kinds onto HTTP statuses
func respond(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, oracle.ErrUnsupportedSymbol),
		errors.Is(err, ErrInvalidDirection),
		errors.Is(err, ErrInvalidStake),
		errors.Is(err, ErrMissingTargetPrice),
		errors.Is(err, ErrInvalidDuration):
		response.ValidationFailed(c, err.Error())
	case errors.Is(err, ErrInsufficientBalance):
		response.InsufficientBalance(c, err.Error())
	case errors.Is(err, ErrBetNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrBetNotPending):
		response.Conflict(c, err.Error())
	default:
		response.Handle(c, data, err)
	}
}

// GinHandlers contains HTTP handlers for betting endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PlaceBetHandler handles POST requests to place new bets
// Requires a valid JWT token; the bet owner comes from the token claims
func (h *GinHandlers) PlaceBetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		var req PlaceBetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		bet, err := h.service.PlaceBet(c.Request.Context(), userID, &req)
		respond(c, bet, err)
	}
}

// ListBetsHandler handles GET requests for the caller's bets
// Query parameters: status (pending, won, lost, cancelled), limit
func (h *GinHandlers) ListBetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		status := c.Query("status")
		switch status {
		case "", StatusPending, StatusWon, StatusLost, StatusCancelled:
		default:
			response.BadRequest(c, "status must be one of pending, won, lost, cancelled")
			return
		}

		limit := 10
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				response.BadRequest(c, "limit must be a positive integer")
				return
			}
			limit = parsed
		}

		bets, err := h.service.ListBets(userID, status, limit)
		response.Handle(c, bets, err)
	}
}

// GetBetHandler handles GET requests for a single bet
// URL parameter: bet_id
func (h *GinHandlers) GetBetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		betID := c.Param("bet_id")
		if betID == "" {
			response.BadRequest(c, "Bet ID is required")
			return
		}

		bet, err := h.service.GetBet(userID, betID)
		respond(c, bet, err)
	}
}

// CancelBetHandler handles DELETE requests to cancel a pending bet
// URL parameter: bet_id
func (h *GinHandlers) CancelBetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		betID := c.Param("bet_id")
		if betID == "" {
			response.BadRequest(c, "Bet ID is required")
			return
		}

		bet, err := h.service.CancelBet(userID, betID)
		respond(c, bet, err)
	}
}
