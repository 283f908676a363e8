package oracle

import (
	"time"

	"gorm.io/gorm"
)

// Quote source values
const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

// Quote is a point-in-time price for a supported symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change24h     float64   `json:"change_24h"`
	ChangePercent float64   `json:"change_percent"`
	Volume24h     float64   `json:"volume_24h"`
	MarketCap     float64   `json:"market_cap"`
	Source        string    `json:"source"` // live or synthetic
	FetchedAt     time.Time `json:"fetched_at"`
}

// PricePoint is the persisted price-history record, one row per fetch
type PricePoint struct {
	gorm.Model    `json:"-"`
	Symbol        string    `gorm:"index" json:"symbol"`
	Price         float64   `json:"price"`
	Change24h     float64   `json:"change_24h"`
	ChangePercent float64   `json:"change_percent"`
	Volume24h     float64   `json:"volume_24h"`
	MarketCap     float64   `json:"market_cap"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetched_at"`
}
