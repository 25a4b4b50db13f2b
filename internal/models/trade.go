package models

import "gorm.io/gorm"

// Trade actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Trade is an immutable log entry for one settled decision. Amount is the
// asset quantity for buys and sells and 0 for holds; Price is the
// post-slippage execution price.
type Trade struct {
	gorm.Model
	TraderID        uint    `gorm:"index" json:"trader_id"`
	Asset           string  `json:"asset"`
	Action          string  `json:"action"`
	Amount          float64 `json:"amount"`
	Price           float64 `json:"price"`
	Slippage        float64 `json:"slippage"`
	TransactionHash string  `gorm:"uniqueIndex" json:"transaction_hash"`
	Reasoning       string  `json:"reasoning"`
	Timestamp       int64   `json:"timestamp"`
}
