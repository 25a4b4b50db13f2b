package arena

import (
	"fmt"

	"ai-trading-arena/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Leaderboard recomputes mark-to-market performance for all active traders
// and liquidates insolvent ones.
type Leaderboard struct {
	db        *gorm.DB
	threshold float64
	logger    *zap.Logger
}

// NewLeaderboard creates a leaderboard updater. threshold is the minimum
// viable portfolio value; traders below it are liquidated.
func NewLeaderboard(db *gorm.DB, threshold float64, logger *zap.Logger) *Leaderboard {
	return &Leaderboard{
		db:        db,
		threshold: threshold,
		logger:    logger,
	}
}

// PortfolioValue computes cash plus mark-to-market value of the trader's
// open positions. A held asset with no quoted price contributes 0.
func (l *Leaderboard) PortfolioValue(trader *models.Trader, prices map[string]float64) (float64, error) {
	var positions []models.Position
	if err := l.db.Where("trader_id = ?", trader.ID).Find(&positions).Error; err != nil {
		return 0, fmt.Errorf("failed to load positions: %w", err)
	}

	total := trader.CurrentBalance
	for _, p := range positions {
		if price, ok := prices[p.Asset]; ok {
			total += p.Quantity * price
		}
	}
	return total, nil
}

// Refresh recomputes profit/loss for every active trader and liquidates any
// whose portfolio value is below the threshold. It is idempotent: a second
// run with the same prices and no intervening trades is a no-op.
func (l *Leaderboard) Refresh(prices map[string]float64) error {
	var traders []models.Trader
	if err := l.db.Where("status = ?", models.StatusActive).Find(&traders).Error; err != nil {
		return fmt.Errorf("failed to load active traders: %w", err)
	}

	for i := range traders {
		trader := &traders[i]
		value, err := l.PortfolioValue(trader, prices)
		if err != nil {
			l.logger.Error("Failed to value portfolio", zap.String("trader", trader.Name), zap.Error(err))
			continue
		}

		pl := (value - trader.InitialBalance) / trader.InitialBalance * 100
		if err := l.db.Model(trader).Update("profit_loss_percentage", pl).Error; err != nil {
			l.logger.Error("Failed to update profit/loss", zap.String("trader", trader.Name), zap.Error(err))
			continue
		}

		if value < l.threshold {
			if err := l.liquidate(trader); err != nil {
				l.logger.Error("Failed to liquidate trader", zap.String("trader", trader.Name), zap.Error(err))
				continue
			}
			l.logger.Warn("Trader liquidated",
				zap.String("trader", trader.Name),
				zap.Float64("portfolio_value", value))
		}
	}

	return nil
}

// liquidate terminally removes a trader from the arena: status flips to
// liquidated, cash goes to zero and all positions are cleared, as one
// transaction.
func (l *Leaderboard) liquidate(trader *models.Trader) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(trader).Updates(map[string]interface{}{
			"status":          models.StatusLiquidated,
			"current_balance": 0,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark trader liquidated: %w", err)
		}
		if err := tx.Unscoped().Where("trader_id = ?", trader.ID).Delete(&models.Position{}).Error; err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}
		return nil
	})
}
