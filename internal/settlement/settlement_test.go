package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/ksred/wager-api/internal/betting"
	"github.com/ksred/wager-api/internal/oracle"
	"github.com/ksred/wager-api/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubPriceSource returns whatever price the test sets
type stubPriceSource struct {
	price float64
}

func (s *stubPriceSource) Supported(symbol string) bool {
	_, ok := oracle.SupportedCoins[symbol]
	return ok
}

func (s *stubPriceSource) GetPrice(ctx context.Context, symbol string) (*oracle.Quote, error) {
	return &oracle.Quote{
		Symbol:    symbol,
		Price:     s.price,
		Source:    oracle.SourceSynthetic,
		FetchedAt: time.Now().UTC(),
	}, nil
}

type testEnv struct {
	settlement *Service
	betting    *betting.Service
	prices     *stubPriceSource
	gormDB     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&betting.Bet{}, &wallet.Balance{}))

	prices := &stubPriceSource{price: 65000}

	env := &testEnv{
		settlement: NewService(gormDB, prices),
		betting:    betting.NewService(gormDB, prices),
		prices:     prices,
		gormDB:     gormDB,
	}

	// Every bet expires one hour after placement; the settlement clock
	// runs two hours ahead so placed bets are immediately due
	env.settlement.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	return env
}

func (e *testEnv) placeBet(t *testing.T, userID int64, direction string, stake float64, target *float64) string {
	t.Helper()
	resp, err := e.betting.PlaceBet(context.Background(), userID, &betting.PlaceBetRequest{
		Symbol:          "BTC",
		Direction:       direction,
		Stake:           stake,
		DurationMinutes: 60,
		TargetPrice:     target,
	})
	require.NoError(t, err)
	return resp.BetID
}

func (e *testEnv) balanceOf(t *testing.T, userID int64) wallet.Balance {
	t.Helper()
	var balance wallet.Balance
	require.NoError(t, e.gormDB.Where("user_id = ?", userID).First(&balance).Error)
	return balance
}

func TestResolveBet(t *testing.T) {
	ctx := context.Background()

	t.Run("UpDirectionWin", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 100, nil)

		env.prices.price = 66000
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.True(t, result.Won)
		assert.Equal(t, 200.0, result.Payout)
		assert.Equal(t, betting.StatusWon, result.Status)
		assert.Equal(t, 66000.0, result.FinalPrice)

		balance := env.balanceOf(t, 1)
		assert.Equal(t, 1100.0, balance.Amount)
		assert.Equal(t, 200.0, balance.TotalWon)
		assert.Equal(t, 1, balance.WinStreak)
		assert.Equal(t, 1, balance.BestStreak)
	})

	t.Run("UpDirectionLoss", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 100, nil)

		env.prices.price = 64000
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.False(t, result.Won)
		assert.Equal(t, 0.0, result.Payout)
		assert.Equal(t, betting.StatusLost, result.Status)

		balance := env.balanceOf(t, 1)
		assert.Equal(t, 900.0, balance.Amount)
		assert.Equal(t, 100.0, balance.TotalLost)
		assert.Equal(t, 0, balance.WinStreak)
	})

	t.Run("UnchangedPriceLosesUpBet", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 100, nil)

		// Final price equals placement price: up requires a strict rise
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.False(t, result.Won)
	})

	t.Run("DownDirectionWin", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionDown, 100, nil)

		env.prices.price = 64000
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.True(t, result.Won)
		assert.Equal(t, 200.0, result.Payout)
	})

	t.Run("ExactWithinMarginWins", func(t *testing.T) {
		env := newTestEnv(t)
		target := 65000.0
		betID := env.placeBet(t, 1, betting.DirectionExact, 50, &target)

		// 65500 is within 1% of the 65000 target
		env.prices.price = 65500
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.True(t, result.Won)
		assert.Equal(t, 500.0, result.Payout)

		balance := env.balanceOf(t, 1)
		assert.Equal(t, 1450.0, balance.Amount)
	})

	t.Run("ExactOutsideMarginLoses", func(t *testing.T) {
		env := newTestEnv(t)
		target := 65000.0
		betID := env.placeBet(t, 1, betting.DirectionExact, 50, &target)

		env.prices.price = 66000
		result, err := env.settlement.ResolveBet(ctx, betID)

		require.NoError(t, err)
		assert.False(t, result.Won)
	})

	t.Run("NotDueBeforeExpiry", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 100, nil)

		env.settlement.now = func() time.Time { return time.Now().UTC() }
		_, err := env.settlement.ResolveBet(ctx, betID)

		assert.ErrorIs(t, err, ErrBetNotDue)

		// Bet stays pending for the next attempt
		bet, getErr := env.settlement.db.GetBet(betID)
		require.NoError(t, getErr)
		assert.Equal(t, betting.StatusPending, bet.Status)
	})

	t.Run("DoubleResolveCreditsOnce", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 100, nil)

		env.prices.price = 66000
		_, err := env.settlement.ResolveBet(ctx, betID)
		require.NoError(t, err)

		_, err = env.settlement.ResolveBet(ctx, betID)
		assert.ErrorIs(t, err, betting.ErrBetNotPending)

		balance := env.balanceOf(t, 1)
		assert.Equal(t, 1100.0, balance.Amount)
		assert.Equal(t, 200.0, balance.TotalWon)
	})

	t.Run("UnknownBet", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.settlement.ResolveBet(ctx, "BET_missing")
		assert.ErrorIs(t, err, betting.ErrBetNotFound)
	})

	t.Run("StreakTracking", func(t *testing.T) {
		env := newTestEnv(t)

		// Two wins, then a loss: win streak resets, best streak survives
		first := env.placeBet(t, 1, betting.DirectionUp, 10, nil)
		second := env.placeBet(t, 1, betting.DirectionUp, 10, nil)
		third := env.placeBet(t, 1, betting.DirectionUp, 10, nil)

		env.prices.price = 66000
		_, err := env.settlement.ResolveBet(ctx, first)
		require.NoError(t, err)
		_, err = env.settlement.ResolveBet(ctx, second)
		require.NoError(t, err)

		env.prices.price = 64000
		_, err = env.settlement.ResolveBet(ctx, third)
		require.NoError(t, err)

		balance := env.balanceOf(t, 1)
		assert.Equal(t, 0, balance.WinStreak)
		assert.Equal(t, 2, balance.BestStreak)
	})
}

func TestProcessorTick(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvesAllDueBets", func(t *testing.T) {
		env := newTestEnv(t)

		first := env.placeBet(t, 1, betting.DirectionUp, 10, nil)
		second := env.placeBet(t, 2, betting.DirectionDown, 20, nil)

		env.prices.price = 66000
		processor := NewProcessor(env.settlement)
		require.NoError(t, processor.Tick(ctx))

		firstBet, err := env.settlement.db.GetBet(first)
		require.NoError(t, err)
		assert.Equal(t, betting.StatusWon, firstBet.Status)

		secondBet, err := env.settlement.db.GetBet(second)
		require.NoError(t, err)
		assert.Equal(t, betting.StatusLost, secondBet.Status)
	})

	t.Run("LeavesUndueBetsPending", func(t *testing.T) {
		env := newTestEnv(t)
		betID := env.placeBet(t, 1, betting.DirectionUp, 10, nil)

		env.settlement.now = func() time.Time { return time.Now().UTC() }
		processor := NewProcessor(env.settlement)
		require.NoError(t, processor.Tick(ctx))

		bet, err := env.settlement.db.GetBet(betID)
		require.NoError(t, err)
		assert.Equal(t, betting.StatusPending, bet.Status)
	})

	t.Run("NoDueBetsIsNoOp", func(t *testing.T) {
		env := newTestEnv(t)

		processor := NewProcessor(env.settlement)
		assert.NoError(t, processor.Tick(ctx))
	})
}
