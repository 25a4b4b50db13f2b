package arena

import (
	"math/rand"
	"testing"

	"ai-trading-arena/internal/decision"
	"ai-trading-arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedger creates an isolated in-memory database and a settler with a
// seeded random source.
func setupLedger(t *testing.T) (*gorm.DB, *Settler) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Trader{}, &models.Position{}, &models.Trade{})
	require.NoError(t, err)

	settler := NewSettler(db, rand.New(rand.NewSource(42)), zap.NewNop())
	return db, settler
}

func createTrader(t *testing.T, db *gorm.DB, balance float64) *models.Trader {
	trader := &models.Trader{
		Name:           "Orion the Oracle",
		ModelName:      "openai/gpt-4.5-turbo",
		InitialBalance: balance,
		CurrentBalance: balance,
		Status:         models.StatusActive,
	}
	require.NoError(t, db.Create(trader).Error)
	return trader
}

func TestSettleBuy_NewPosition(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 250)

	d := decision.Decision{Asset: "X", Action: models.ActionBuy, Amount: 50, Reasoning: "entry"}
	trade, err := settler.Settle(trader, d, 100)

	require.NoError(t, err)
	require.NotNil(t, trade)

	// Cash debited by the full spend.
	assert.InDelta(t, 200, trader.CurrentBalance, 1e-9)
	assert.Equal(t, 1, trader.TotalTrades)

	var stored models.Trader
	require.NoError(t, db.First(&stored, trader.ID).Error)
	assert.InDelta(t, 200, stored.CurrentBalance, 1e-9)
	assert.Equal(t, 1, stored.TotalTrades)

	// Slippage is adverse: execution price above quote, within 0.1-0.5%.
	assert.GreaterOrEqual(t, trade.Price, 100*1.001)
	assert.LessOrEqual(t, trade.Price, 100*1.005)
	assert.InDelta(t, trade.Price-100, trade.Slippage, 1e-9)

	var position models.Position
	require.NoError(t, db.Where("trader_id = ? AND asset = ?", trader.ID, "X").First(&position).Error)
	assert.InDelta(t, 50/trade.Price, position.Quantity, 1e-9)
	assert.GreaterOrEqual(t, position.Quantity, 50/100.5)
	assert.LessOrEqual(t, position.Quantity, 50/100.1)
	assert.Equal(t, trade.Price, position.AverageBuyPrice)
	assert.Equal(t, position.Quantity, trade.Amount)
}

func TestSettleBuy_InsufficientBalance(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 40)

	d := decision.Decision{Asset: "BTC", Action: models.ActionBuy, Amount: 50}
	trade, err := settler.Settle(trader, d, 100)

	// Rejected, not an error, and nothing mutated.
	assert.NoError(t, err)
	assert.Nil(t, trade)

	var stored models.Trader
	require.NoError(t, db.First(&stored, trader.ID).Error)
	assert.Equal(t, 40.0, stored.CurrentBalance)
	assert.Equal(t, 0, stored.TotalTrades)

	var tradeCount int64
	db.Model(&models.Trade{}).Count(&tradeCount)
	assert.Zero(t, tradeCount)
}

func TestSettle_NonPositivePriceRejected(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 250)

	// A buy at a zero quote must not commit an infinite-quantity position.
	trade, err := settler.Settle(trader, decision.Decision{Asset: "DEAD", Action: models.ActionBuy, Amount: 50}, 0)
	assert.NoError(t, err)
	assert.Nil(t, trade)

	trade, err = settler.Settle(trader, decision.Decision{Asset: "DEAD", Action: models.ActionSell, Amount: 1}, -1)
	assert.NoError(t, err)
	assert.Nil(t, trade)

	var stored models.Trader
	require.NoError(t, db.First(&stored, trader.ID).Error)
	assert.Equal(t, 250.0, stored.CurrentBalance)
	assert.Equal(t, 0, stored.TotalTrades)

	var positionCount, tradeCount int64
	db.Model(&models.Position{}).Count(&positionCount)
	db.Model(&models.Trade{}).Count(&tradeCount)
	assert.Zero(t, positionCount)
	assert.Zero(t, tradeCount)
}

func TestSettleBuy_WeightedAverage(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 1000)

	first, err := settler.Settle(trader, decision.Decision{Asset: "ETH", Action: models.ActionBuy, Amount: 100}, 100)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := settler.Settle(trader, decision.Decision{Asset: "ETH", Action: models.ActionBuy, Amount: 100}, 200)
	require.NoError(t, err)
	require.NotNil(t, second)

	var position models.Position
	require.NoError(t, db.Where("trader_id = ? AND asset = ?", trader.ID, "ETH").First(&position).Error)

	q1, p1 := first.Amount, first.Price
	q2, p2 := second.Amount, second.Price
	expectedAvg := (q1*p1 + q2*p2) / (q1 + q2)

	assert.InDelta(t, q1+q2, position.Quantity, 1e-9)
	assert.InDelta(t, expectedAvg, position.AverageBuyPrice, 1e-9)
	assert.Equal(t, 2, trader.TotalTrades)
	assert.InDelta(t, 800, trader.CurrentBalance, 1e-9)
}

func TestSettleSell_FullPosition(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 0)
	require.NoError(t, db.Create(&models.Position{
		TraderID:        trader.ID,
		Asset:           "X",
		Quantity:        1.0,
		AverageBuyPrice: 100,
	}).Error)

	d := decision.Decision{Asset: "X", Action: models.ActionSell, Amount: 1.0, Reasoning: "take profit"}
	trade, err := settler.Settle(trader, d, 120)

	require.NoError(t, err)
	require.NotNil(t, trade)

	// Proceeds are slippage-adjusted downward: 120 less 0.1-0.5%.
	assert.GreaterOrEqual(t, trader.CurrentBalance, 119.4)
	assert.LessOrEqual(t, trader.CurrentBalance, 119.88)
	assert.LessOrEqual(t, trade.Price, 120*0.999)
	assert.GreaterOrEqual(t, trade.Price, 120*0.995)
	assert.InDelta(t, 120-trade.Price, trade.Slippage, 1e-9)
	assert.Equal(t, 1, trader.TotalTrades)

	// Position fully sold is removed.
	var count int64
	db.Model(&models.Position{}).Where("trader_id = ?", trader.ID).Count(&count)
	assert.Zero(t, count)
}

func TestSettleSell_Partial_KeepsCostBasis(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 10)
	require.NoError(t, db.Create(&models.Position{
		TraderID:        trader.ID,
		Asset:           "SOL",
		Quantity:        2.0,
		AverageBuyPrice: 140,
	}).Error)

	trade, err := settler.Settle(trader, decision.Decision{Asset: "SOL", Action: models.ActionSell, Amount: 0.5}, 150)
	require.NoError(t, err)
	require.NotNil(t, trade)

	var position models.Position
	require.NoError(t, db.Where("trader_id = ? AND asset = ?", trader.ID, "SOL").First(&position).Error)
	assert.InDelta(t, 1.5, position.Quantity, 1e-9)
	assert.Equal(t, 140.0, position.AverageBuyPrice)
	assert.InDelta(t, 10+0.5*trade.Price, trader.CurrentBalance, 1e-9)
}

func TestSettleSell_EpsilonRemainder_ClosesPosition(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 0)
	require.NoError(t, db.Create(&models.Position{
		TraderID:        trader.ID,
		Asset:           "BTC",
		Quantity:        1.00005,
		AverageBuyPrice: 60000,
	}).Error)

	trade, err := settler.Settle(trader, decision.Decision{Asset: "BTC", Action: models.ActionSell, Amount: 1.0}, 60000)
	require.NoError(t, err)
	require.NotNil(t, trade)

	// Remainder of 0.00005 is below the epsilon, position closes outright.
	var count int64
	db.Model(&models.Position{}).Where("trader_id = ?", trader.ID).Count(&count)
	assert.Zero(t, count)
}

func TestSettleSell_InsufficientHoldings(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 100)
	require.NoError(t, db.Create(&models.Position{
		TraderID:        trader.ID,
		Asset:           "ETH",
		Quantity:        0.5,
		AverageBuyPrice: 2500,
	}).Error)

	trade, err := settler.Settle(trader, decision.Decision{Asset: "ETH", Action: models.ActionSell, Amount: 1.0}, 2600)
	assert.NoError(t, err)
	assert.Nil(t, trade)

	// No mutation on rejection.
	var position models.Position
	require.NoError(t, db.Where("trader_id = ? AND asset = ?", trader.ID, "ETH").First(&position).Error)
	assert.Equal(t, 0.5, position.Quantity)

	var stored models.Trader
	require.NoError(t, db.First(&stored, trader.ID).Error)
	assert.Equal(t, 100.0, stored.CurrentBalance)
	assert.Equal(t, 0, stored.TotalTrades)
}

func TestSettleSell_NoPosition(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 100)

	trade, err := settler.Settle(trader, decision.Decision{Asset: "DOGE", Action: models.ActionSell, Amount: 10}, 0.2)
	assert.NoError(t, err)
	assert.Nil(t, trade)
}

func TestSettleHold_RecordsTradeWithoutCounting(t *testing.T) {
	db, settler := setupLedger(t)
	trader := createTrader(t, db, 250)

	trade, err := settler.Settle(trader, decision.Decision{Asset: "BTC", Action: models.ActionHold, Amount: 0, Reasoning: "waiting"}, 68000)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, models.ActionHold, trade.Action)
	assert.Equal(t, 0.0, trade.Amount)
	assert.Equal(t, 68000.0, trade.Price)
	assert.Equal(t, 0.0, trade.Slippage)

	// A hold is logged but does not count as a trade.
	var stored models.Trader
	require.NoError(t, db.First(&stored, trader.ID).Error)
	assert.Equal(t, 0, stored.TotalTrades)
	assert.Equal(t, 250.0, stored.CurrentBalance)

	var tradeCount int64
	db.Model(&models.Trade{}).Count(&tradeCount)
	assert.Equal(t, int64(1), tradeCount)
}

func TestSlippage_AlwaysAdverseAndBounded(t *testing.T) {
	_, settler := setupLedger(t)

	for i := 0; i < 1000; i++ {
		buyPrice, buySlip := settler.drawSlippage(100, true)
		assert.GreaterOrEqual(t, buyPrice, 100.1)
		assert.LessOrEqual(t, buyPrice, 100.5)
		assert.Greater(t, buySlip, 0.0)

		sellPrice, sellSlip := settler.drawSlippage(100, false)
		assert.GreaterOrEqual(t, sellPrice, 99.5)
		assert.LessOrEqual(t, sellPrice, 99.9)
		assert.Greater(t, sellSlip, 0.0)
	}
}

func TestTransactionHash_Format(t *testing.T) {
	_, settler := setupLedger(t)

	h1 := settler.transactionHash()
	h2 := settler.transactionHash()

	assert.Len(t, h1, 66)
	assert.Equal(t, "0x", h1[:2])
	assert.NotEqual(t, h1, h2)
}
