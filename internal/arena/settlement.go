package arena

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"ai-trading-arena/internal/decision"
	"ai-trading-arena/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// Slippage fraction drawn per execution, always adverse.
	slippageMin = 0.001
	slippageMax = 0.005

	// Positions below this quantity are closed outright on a sell.
	positionEpsilon = 1e-4
)

// Settler is the ledger engine. Given one validated decision and a quoted
// price it mutates a single trader's balance and position book and appends
// an immutable trade record, all inside one database transaction.
type Settler struct {
	db     *gorm.DB
	rng    *rand.Rand
	logger *zap.Logger
}

// NewSettler creates a settlement engine. The random source drives slippage
// draws and transaction hashes; tests pass a seeded generator.
func NewSettler(db *gorm.DB, rng *rand.Rand, logger *zap.Logger) *Settler {
	return &Settler{
		db:     db,
		rng:    rng,
		logger: logger,
	}
}

// drawSlippage returns an adverse execution price and the signed slippage
// cost in price units.
func (s *Settler) drawSlippage(price float64, isBuy bool) (execution, slippage float64) {
	fraction := slippageMin + s.rng.Float64()*(slippageMax-slippageMin)
	if isBuy {
		execution = price * (1 + fraction)
		return execution, execution - price
	}
	execution = price * (1 - fraction)
	return execution, price - execution
}

// transactionHash generates a fake 0x-prefixed 64-hex-char identifier for a
// trade record.
func (s *Settler) transactionHash() string {
	const chars = "0123456789abcdef"
	hash := make([]byte, 66)
	hash[0], hash[1] = '0', 'x'
	for i := 2; i < len(hash); i++ {
		hash[i] = chars[s.rng.Intn(len(chars))]
	}
	return string(hash)
}

// Settle commits one decision against the ledger. A (nil, nil) return means
// the decision was rejected before settlement (insufficient cash or
// holdings, or no usable price) and no state was touched; the caller
// records it as a skipped
// cycle, not an error. On success the trader struct reflects the committed
// balance and trade count.
func (s *Settler) Settle(trader *models.Trader, d decision.Decision, currentPrice float64) (*models.Trade, error) {
	// A non-positive quote would buy an infinite quantity at a zero cost
	// basis. Treat it like a missing price and reject the decision.
	if currentPrice <= 0 {
		s.logger.Info("Decision rejected, no usable price",
			zap.String("trader", trader.Name),
			zap.String("asset", d.Asset),
			zap.Float64("price", currentPrice))
		return nil, nil
	}

	switch d.Action {
	case models.ActionHold:
		return s.settleHold(trader, d, currentPrice)
	case models.ActionBuy:
		return s.settleBuy(trader, d, currentPrice)
	case models.ActionSell:
		return s.settleSell(trader, d, currentPrice)
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
}

// settleHold records the decision without touching balance or positions.
// Holds do not count toward total_trades.
func (s *Settler) settleHold(trader *models.Trader, d decision.Decision, currentPrice float64) (*models.Trade, error) {
	trade := models.Trade{
		TraderID:        trader.ID,
		Asset:           d.Asset,
		Action:          models.ActionHold,
		Amount:          0,
		Price:           currentPrice,
		Slippage:        0,
		TransactionHash: s.transactionHash(),
		Reasoning:       d.Reasoning,
		Timestamp:       time.Now().Unix(),
	}
	if err := s.db.Create(&trade).Error; err != nil {
		return nil, fmt.Errorf("failed to record hold: %w", err)
	}
	return &trade, nil
}

// settleBuy spends d.Amount of cash on the asset at an adverse execution
// price and upserts the trader's position with a weighted-average cost
// basis.
func (s *Settler) settleBuy(trader *models.Trader, d decision.Decision, currentPrice float64) (*models.Trade, error) {
	if d.Amount <= 0 || d.Amount > trader.CurrentBalance {
		s.logger.Info("Buy rejected",
			zap.String("trader", trader.Name),
			zap.String("asset", d.Asset),
			zap.Float64("amount", d.Amount),
			zap.Float64("balance", trader.CurrentBalance))
		return nil, nil
	}

	executionPrice, slippage := s.drawSlippage(currentPrice, true)
	quantity := d.Amount / executionPrice
	newBalance := trader.CurrentBalance - d.Amount

	trade := models.Trade{
		TraderID:        trader.ID,
		Asset:           d.Asset,
		Action:          models.ActionBuy,
		Amount:          quantity,
		Price:           executionPrice,
		Slippage:        slippage,
		TransactionHash: s.transactionHash(),
		Reasoning:       d.Reasoning,
		Timestamp:       time.Now().Unix(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Trader{}).Where("id = ?", trader.ID).Updates(map[string]interface{}{
			"current_balance": newBalance,
			"total_trades":    trader.TotalTrades + 1,
		}).Error; err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}

		var position models.Position
		err := tx.Where("trader_id = ? AND asset = ?", trader.ID, d.Asset).First(&position).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			position = models.Position{
				TraderID:        trader.ID,
				Asset:           d.Asset,
				Quantity:        quantity,
				AverageBuyPrice: executionPrice,
			}
			if err := tx.Create(&position).Error; err != nil {
				return fmt.Errorf("failed to create position: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load position: %w", err)
		default:
			newQuantity := position.Quantity + quantity
			newAvgPrice := (position.Quantity*position.AverageBuyPrice + quantity*executionPrice) / newQuantity
			if err := tx.Model(&position).Updates(map[string]interface{}{
				"quantity":          newQuantity,
				"average_buy_price": newAvgPrice,
			}).Error; err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		}

		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	trader.CurrentBalance = newBalance
	trader.TotalTrades++
	return &trade, nil
}

// settleSell disposes d.Amount units of the asset at an adverse execution
// price, crediting the proceeds. The remaining lot keeps its cost basis; a
// remainder below positionEpsilon closes the position.
func (s *Settler) settleSell(trader *models.Trader, d decision.Decision, currentPrice float64) (*models.Trade, error) {
	var position models.Position
	err := s.db.Where("trader_id = ? AND asset = ?", trader.ID, d.Asset).First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && position.Quantity < d.Amount) || d.Amount <= 0 {
		held := position.Quantity
		s.logger.Info("Sell rejected",
			zap.String("trader", trader.Name),
			zap.String("asset", d.Asset),
			zap.Float64("amount", d.Amount),
			zap.Float64("held", held))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	executionPrice, slippage := s.drawSlippage(currentPrice, false)
	proceeds := d.Amount * executionPrice
	newBalance := trader.CurrentBalance + proceeds
	newQuantity := position.Quantity - d.Amount

	trade := models.Trade{
		TraderID:        trader.ID,
		Asset:           d.Asset,
		Action:          models.ActionSell,
		Amount:          d.Amount,
		Price:           executionPrice,
		Slippage:        slippage,
		TransactionHash: s.transactionHash(),
		Reasoning:       d.Reasoning,
		Timestamp:       time.Now().Unix(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Trader{}).Where("id = ?", trader.ID).Updates(map[string]interface{}{
			"current_balance": newBalance,
			"total_trades":    trader.TotalTrades + 1,
		}).Error; err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}

		if newQuantity > positionEpsilon {
			if err := tx.Model(&position).Update("quantity", newQuantity).Error; err != nil {
				return fmt.Errorf("failed to reduce position: %w", err)
			}
		} else {
			if err := tx.Unscoped().Delete(&position).Error; err != nil {
				return fmt.Errorf("failed to close position: %w", err)
			}
		}

		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	trader.CurrentBalance = newBalance
	trader.TotalTrades++
	return &trade, nil
}
