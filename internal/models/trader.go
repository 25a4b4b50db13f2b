package models

import "gorm.io/gorm"

// Trader status values. Liquidation is terminal: a liquidated trader is
// never processed again.
const (
	StatusActive     = "active"
	StatusLiquidated = "liquidated"
)

// Trader represents one autonomous AI participant with its own cash balance.
type Trader struct {
	gorm.Model
	Name                 string  `gorm:"uniqueIndex" json:"name"`
	ModelName            string  `gorm:"not null" json:"model_name"`
	Personality          string  `json:"personality"`
	InitialBalance       float64 `gorm:"not null" json:"initial_balance"`
	CurrentBalance       float64 `gorm:"not null" json:"current_balance"`
	TotalTrades          int     `gorm:"default:0" json:"total_trades"`
	ProfitLossPercentage float64 `gorm:"default:0" json:"profit_loss_percentage"`
	Status               string  `gorm:"default:active" json:"status"`
}
