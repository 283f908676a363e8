package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&Balance{}))

	return NewService(gormDB)
}

func TestGetBalance(t *testing.T) {
	t.Run("NewUserStartsWithDefaultBalance", func(t *testing.T) {
		service := newTestService(t)

		summary, err := service.GetBalance(1)

		require.NoError(t, err)
		assert.Equal(t, int64(1), summary.UserID)
		assert.Equal(t, StartingBalance, summary.Amount)
		assert.Equal(t, 0, summary.TotalBets)
		assert.Equal(t, 0.0, summary.WinRate)
		assert.Equal(t, 0.0, summary.ProfitLoss)
	})

	t.Run("RepeatAccessReturnsSameBalance", func(t *testing.T) {
		service := newTestService(t)

		first, err := service.GetBalance(7)
		require.NoError(t, err)

		second, err := service.GetBalance(7)
		require.NoError(t, err)

		assert.Equal(t, first.Amount, second.Amount)

		var count int64
		require.NoError(t, service.db.db.Model(&Balance{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("WinRateAndProfitLoss", func(t *testing.T) {
		service := newTestService(t)

		require.NoError(t, service.db.db.Create(&Balance{
			UserID:       3,
			Amount:       1200,
			TotalWagered: 400,
			TotalWon:     300,
			TotalLost:    100,
		}).Error)

		summary, err := service.GetBalance(3)

		require.NoError(t, err)
		assert.InDelta(t, 75.0, summary.WinRate, 0.0001)
		assert.InDelta(t, 200.0, summary.ProfitLoss, 0.0001)
	})
}

func TestClaimDailyBonus(t *testing.T) {
	baseTime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("FirstClaimGrantsBaseAmount", func(t *testing.T) {
		service := newTestService(t)
		service.now = func() time.Time { return baseTime }

		result, err := service.ClaimDailyBonus(1)

		require.NoError(t, err)
		assert.True(t, result.Granted)
		assert.Equal(t, 100.0, result.Amount)

		summary, err := service.GetBalance(1)
		require.NoError(t, err)
		assert.Equal(t, 1100.0, summary.Amount)
	})

	t.Run("SecondClaimSameDayGrantsNothing", func(t *testing.T) {
		service := newTestService(t)
		service.now = func() time.Time { return baseTime }

		_, err := service.ClaimDailyBonus(1)
		require.NoError(t, err)

		service.now = func() time.Time { return baseTime.Add(6 * time.Hour) }
		result, err := service.ClaimDailyBonus(1)

		require.NoError(t, err)
		assert.False(t, result.Granted)
		assert.Equal(t, 0.0, result.Amount)

		summary, err := service.GetBalance(1)
		require.NoError(t, err)
		assert.Equal(t, 1100.0, summary.Amount)
	})

	t.Run("ClaimAllowedNextUTCDay", func(t *testing.T) {
		service := newTestService(t)
		service.now = func() time.Time { return baseTime }

		_, err := service.ClaimDailyBonus(1)
		require.NoError(t, err)

		// 00:30 UTC the following day
		service.now = func() time.Time {
			return time.Date(2024, 6, 2, 0, 30, 0, 0, time.UTC)
		}
		result, err := service.ClaimDailyBonus(1)

		require.NoError(t, err)
		assert.True(t, result.Granted)

		summary, err := service.GetBalance(1)
		require.NoError(t, err)
		assert.Equal(t, 1200.0, summary.Amount)
	})

	t.Run("LowBalanceGetsBoostedBonus", func(t *testing.T) {
		service := newTestService(t)
		service.now = func() time.Time { return baseTime }

		require.NoError(t, service.db.db.Create(&Balance{UserID: 2, Amount: 10}).Error)

		result, err := service.ClaimDailyBonus(2)

		require.NoError(t, err)
		assert.True(t, result.Granted)
		assert.Equal(t, 200.0, result.Amount)

		summary, err := service.GetBalance(2)
		require.NoError(t, err)
		assert.Equal(t, 210.0, summary.Amount)
	})

	t.Run("HighBalanceGetsReducedBonus", func(t *testing.T) {
		service := newTestService(t)
		service.now = func() time.Time { return baseTime }

		require.NoError(t, service.db.db.Create(&Balance{UserID: 3, Amount: 9000}).Error)

		result, err := service.ClaimDailyBonus(3)

		require.NoError(t, err)
		assert.True(t, result.Granted)
		assert.Equal(t, 50.0, result.Amount)
	})
}

func TestTopBalances(t *testing.T) {
	t.Run("OrderedByAmountDescending", func(t *testing.T) {
		service := newTestService(t)

		require.NoError(t, service.db.db.Create(&Balance{UserID: 1, Amount: 500}).Error)
		require.NoError(t, service.db.db.Create(&Balance{UserID: 2, Amount: 2500}).Error)
		require.NoError(t, service.db.db.Create(&Balance{UserID: 3, Amount: 1500}).Error)

		top, err := service.TopBalances(10)

		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, int64(2), top[0].UserID)
		assert.Equal(t, int64(3), top[1].UserID)
		assert.Equal(t, int64(1), top[2].UserID)
	})

	t.Run("TiesBrokenByUserID", func(t *testing.T) {
		service := newTestService(t)

		require.NoError(t, service.db.db.Create(&Balance{UserID: 9, Amount: 1000}).Error)
		require.NoError(t, service.db.db.Create(&Balance{UserID: 4, Amount: 1000}).Error)

		top, err := service.TopBalances(10)

		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, int64(4), top[0].UserID)
		assert.Equal(t, int64(9), top[1].UserID)
	})

	t.Run("LimitRespected", func(t *testing.T) {
		service := newTestService(t)

		for i := int64(1); i <= 5; i++ {
			require.NoError(t, service.db.db.Create(&Balance{UserID: i, Amount: float64(i * 100)}).Error)
		}

		top, err := service.TopBalances(2)

		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, int64(5), top[0].UserID)
		assert.Equal(t, int64(4), top[1].UserID)
	})
}
