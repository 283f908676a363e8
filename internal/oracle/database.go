package oracle

import (
	"strings"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreatePricePoint appends a fetched quote to the price history
func (d *Database) CreatePricePoint(quote *Quote) error {
	point := PricePoint{
		Symbol:        quote.Symbol,
		Price:         quote.Price,
		Change24h:     quote.Change24h,
		ChangePercent: quote.ChangePercent,
		Volume24h:     quote.Volume24h,
		MarketCap:     quote.MarketCap,
		Source:        quote.Source,
		FetchedAt:     quote.FetchedAt,
	}
	return d.db.Create(&point).Error
}

// GetRecentPricePoints returns the latest history rows for a symbol
func (d *Database) GetRecentPricePoints(symbol string, limit int) ([]PricePoint, error) {
	var points []PricePoint
	if err := d.db.Where("symbol = ?", symbol).
		Order("fetched_at DESC").
		Limit(limit).
		Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

// normalizeSymbol uppercases user-supplied symbols
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
