package models

import "gorm.io/gorm"

// Position is a trader's open holding in one asset. There is at most one
// row per (trader, asset); a missing row means no holding.
type Position struct {
	gorm.Model
	TraderID        uint    `gorm:"uniqueIndex:idx_trader_asset" json:"trader_id"`
	Asset           string  `gorm:"uniqueIndex:idx_trader_asset" json:"asset"`
	Quantity        float64 `gorm:"not null" json:"quantity"`
	AverageBuyPrice float64 `gorm:"not null" json:"average_buy_price"`
}
