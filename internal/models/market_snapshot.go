package models

import "gorm.io/gorm"

// MarketSnapshot records the price and 24h stats of one asset at the start
// of a trade cycle. Append-only; the dashboard reads it for history charts.
type MarketSnapshot struct {
	gorm.Model
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
}
