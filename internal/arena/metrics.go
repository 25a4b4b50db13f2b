package arena

import (
	"math"

	"ai-trading-arena/internal/models"
)

// Metrics summarizes a trader's performance for the status API.
type Metrics struct {
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	TotalProfit float64 `json:"total_profit"`
	BestTrade   float64 `json:"best_trade"`
}

// SharpeRatio computes the risk-adjusted return over a series of per-cycle
// returns. Zero when there is not enough history or no variance.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	avg := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - avg) * (r - avg)
	}
	variance /= float64(len(returns))

	// Constant returns leave ~1e-34 of accumulation noise in the variance,
	// so an exact zero check would divide by it.
	stdDev := math.Sqrt(variance)
	if stdDev < 1e-12 {
		return 0
	}
	return (avg - riskFreeRate) / stdDev
}

// MaxDrawdown returns the largest peak-to-trough decline of a balance
// history as a negative percentage.
func MaxDrawdown(history []float64) float64 {
	if len(history) < 2 {
		return 0
	}

	maxDrawdown := 0.0
	peak := history[0]
	for _, balance := range history {
		if balance > peak {
			peak = balance
		}
		drawdown := (balance - peak) / peak * 100
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// WinRate is the percentage of sells executed above the most recent prior
// buy price of the same asset. Holds are ignored.
func WinRate(trades []models.Trade) float64 {
	var pairs, wins int
	for _, sell := range trades {
		if sell.Action != models.ActionSell {
			continue
		}
		var buy *models.Trade
		for i := range trades {
			t := &trades[i]
			if t.Action != models.ActionBuy || t.Asset != sell.Asset || t.Timestamp >= sell.Timestamp {
				continue
			}
			if buy == nil || t.Timestamp > buy.Timestamp {
				buy = t
			}
		}
		if buy == nil {
			continue
		}
		pairs++
		if sell.Price > buy.Price {
			wins++
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(wins) / float64(pairs) * 100
}

// TotalProfit nets sell proceeds against buy costs across the full trade
// history.
func TotalProfit(trades []models.Trade) float64 {
	var total float64
	for _, t := range trades {
		switch t.Action {
		case models.ActionSell:
			total += t.Amount * t.Price
		case models.ActionBuy:
			total -= t.Amount * t.Price
		}
	}
	return total
}

// BestTrade returns the highest profit realized by any single sell, measured
// against the average price of all prior buys of the same asset.
func BestTrade(trades []models.Trade) float64 {
	best := 0.0
	for _, sell := range trades {
		if sell.Action != models.ActionSell {
			continue
		}
		var sum float64
		var count int
		for _, buy := range trades {
			if buy.Action == models.ActionBuy && buy.Asset == sell.Asset && buy.Timestamp < sell.Timestamp {
				sum += buy.Price
				count++
			}
		}
		if count == 0 {
			continue
		}
		avgBuy := sum / float64(count)
		if profit := sell.Amount * (sell.Price - avgBuy); profit > best {
			best = profit
		}
	}
	return best
}

// TraderMetrics assembles the full metrics block from a trade history and
// balance history.
func TraderMetrics(trades []models.Trade, balanceHistory []float64) Metrics {
	var returns []float64
	for i := 1; i < len(balanceHistory); i++ {
		if balanceHistory[i-1] != 0 {
			returns = append(returns, (balanceHistory[i]-balanceHistory[i-1])/balanceHistory[i-1])
		}
	}
	return Metrics{
		SharpeRatio: SharpeRatio(returns, 0.02),
		MaxDrawdown: MaxDrawdown(balanceHistory),
		WinRate:     WinRate(trades),
		TotalProfit: TotalProfit(trades),
		BestTrade:   BestTrade(trades),
	}
}
