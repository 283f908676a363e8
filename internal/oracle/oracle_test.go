package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSupported(t *testing.T) {
	oracle := NewOracle(nil, nil, 1)

	assert.True(t, oracle.Supported("BTC"))
	assert.True(t, oracle.Supported("DOGE"))
	assert.False(t, oracle.Supported("SHIB"))
	assert.False(t, oracle.Supported("btc"))
	assert.False(t, oracle.Supported(""))
}

func TestGetPriceSynthetic(t *testing.T) {
	ctx := context.Background()

	t.Run("NoFeedServesSyntheticQuotes", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		quote, err := oracle.GetPrice(ctx, "BTC")

		require.NoError(t, err)
		assert.Equal(t, "BTC", quote.Symbol)
		assert.Equal(t, "Bitcoin", quote.Name)
		assert.Equal(t, SourceSynthetic, quote.Source)
		// Jitter stays within ±5% of the base price
		assert.InDelta(t, 65000.0, quote.Price, 65000.0*0.05)
	})

	t.Run("UnsupportedSymbol", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		quote, err := oracle.GetPrice(ctx, "SHIB")

		assert.ErrorIs(t, err, ErrUnsupportedSymbol)
		assert.Nil(t, quote)
	})

	t.Run("SameSeedSamePrices", func(t *testing.T) {
		first := NewOracle(nil, nil, 42)
		second := NewOracle(nil, nil, 42)

		a, err := first.GetPrice(ctx, "ETH")
		require.NoError(t, err)
		b, err := second.GetPrice(ctx, "ETH")
		require.NoError(t, err)

		assert.Equal(t, a.Price, b.Price)
		assert.Equal(t, a.Change24h, b.Change24h)
	})

	t.Run("AllSupportedSymbolsQuotable", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		for symbol := range SupportedCoins {
			quote, err := oracle.GetPrice(ctx, symbol)
			require.NoError(t, err, "symbol %s", symbol)
			assert.Greater(t, quote.Price, 0.0, "symbol %s", symbol)
		}
	})
}

func TestGetPriceCache(t *testing.T) {
	ctx := context.Background()

	t.Run("FreshQuoteServedFromCache", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		first, err := oracle.GetPrice(ctx, "BTC")
		require.NoError(t, err)

		second, err := oracle.GetPrice(ctx, "BTC")
		require.NoError(t, err)

		assert.Equal(t, first.Price, second.Price)
		assert.Equal(t, first.FetchedAt, second.FetchedAt)
	})

	t.Run("ExpiredEntryRefetched", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)
		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		oracle.now = func() time.Time { return base }

		first, err := oracle.GetPrice(ctx, "BTC")
		require.NoError(t, err)

		// Synthetic quotes expire after 60 seconds
		oracle.now = func() time.Time { return base.Add(90 * time.Second) }
		second, err := oracle.GetPrice(ctx, "BTC")
		require.NoError(t, err)

		assert.NotEqual(t, first.FetchedAt, second.FetchedAt)
	})
}

func TestGetPriceLiveFeed(t *testing.T) {
	ctx := context.Background()

	t.Run("LiveQuoteFromUpstream", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"bitcoin":{"usd":67123.5,"usd_24h_change":2.5,"usd_24h_vol":31000000000,"usd_market_cap":1300000000000}}`)
		}))
		defer upstream.Close()

		oracle := NewOracle(nil, NewFeedClient(upstream.URL), 1)

		quote, err := oracle.GetPrice(ctx, "BTC")

		require.NoError(t, err)
		assert.Equal(t, SourceLive, quote.Source)
		assert.Equal(t, 67123.5, quote.Price)
		assert.Equal(t, 2.5, quote.ChangePercent)
	})

	t.Run("FeedFailureFallsBackToSynthetic", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer upstream.Close()

		oracle := NewOracle(nil, NewFeedClient(upstream.URL), 1)

		quote, err := oracle.GetPrice(ctx, "BTC")

		require.NoError(t, err)
		assert.Equal(t, SourceSynthetic, quote.Source)
		assert.InDelta(t, 65000.0, quote.Price, 65000.0*0.05)
	})

	t.Run("UnreachableFeedFallsBackToSynthetic", func(t *testing.T) {
		oracle := NewOracle(nil, NewFeedClient("http://127.0.0.1:1"), 1)

		quote, err := oracle.GetPrice(ctx, "ETH")

		require.NoError(t, err)
		assert.Equal(t, SourceSynthetic, quote.Source)
	})

	t.Run("MalformedFeedResponseFallsBackToSynthetic", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		}))
		defer upstream.Close()

		oracle := NewOracle(nil, NewFeedClient(upstream.URL), 1)

		quote, err := oracle.GetPrice(ctx, "BTC")

		require.NoError(t, err)
		assert.Equal(t, SourceSynthetic, quote.Source)
	})
}

func TestHistory(t *testing.T) {
	t.Run("NoHistoryStoreReturnsEmpty", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		points, err := oracle.History("BTC", 10)

		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("UnsupportedSymbol", func(t *testing.T) {
		oracle := NewOracle(nil, nil, 1)

		_, err := oracle.History("SHIB", 10)

		assert.ErrorIs(t, err, ErrUnsupportedSymbol)
	})

	t.Run("ReturnsNewestFirst", func(t *testing.T) {
		gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		require.NoError(t, gormDB.AutoMigrate(&PricePoint{}))

		history := NewDatabase(gormDB)
		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			require.NoError(t, history.CreatePricePoint(&Quote{
				Symbol:    "BTC",
				Price:     65000 + float64(i),
				Source:    SourceSynthetic,
				FetchedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		oracle := NewOracle(history, nil, 1)
		points, err := oracle.History("BTC", 2)

		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 65002.0, points[0].Price)
		assert.Equal(t, 65001.0, points[1].Price)
	})
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTC", normalizeSymbol("btc"))
	assert.Equal(t, "BTC", normalizeSymbol(" BTC "))
	assert.Equal(t, "DOGE", normalizeSymbol("Doge"))
}
