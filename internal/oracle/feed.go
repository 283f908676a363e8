package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// feedIDs maps supported symbols to upstream feed identifiers
var feedIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"BCH":  "bitcoin-cash",
	"XRP":  "ripple",
	"DOGE": "dogecoin",
}

// FeedClient fetches live prices from an upstream market-data feed
type FeedClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewFeedClient creates a feed client with a bounded request timeout
func NewFeedClient(baseURL string) *FeedClient {
	return &FeedClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// feedEntry is the per-coin payload of the upstream simple-price endpoint
type feedEntry struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
	USDMarketCap float64 `json:"usd_market_cap"`
}

// FetchPrice retrieves the current price for a single symbol
// The caller is responsible for falling back when an error is returned
func (f *FeedClient) FetchPrice(ctx context.Context, symbol string) (*Quote, error) {
	id, ok := feedIDs[symbol]
	if !ok {
		return nil, ErrUnsupportedSymbol
	}

	url := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true&include_24hr_vol=true&include_market_cap=true",
		f.BaseURL, id,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var payload map[string]feedEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	entry, ok := payload[id]
	if !ok || entry.USD <= 0 {
		return nil, fmt.Errorf("feed response missing price for %s", symbol)
	}

	changeAbs := entry.USD * entry.USD24hChange / 100

	return &Quote{
		Symbol:        symbol,
		Name:          SupportedCoins[symbol],
		Price:         entry.USD,
		Change24h:     changeAbs,
		ChangePercent: entry.USD24hChange,
		Volume24h:     entry.USD24hVol,
		MarketCap:     entry.USDMarketCap,
		Source:        SourceLive,
		FetchedAt:     time.Now().UTC(),
	}, nil
}
