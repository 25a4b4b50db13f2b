package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"ai-trading-arena/internal/market"
	"ai-trading-arena/internal/models"
	"go.uber.org/zap"
)

// FallbackReasoning is recorded on every substituted hold decision.
const FallbackReasoning = "Unable to analyze market conditions at this time, holding position."

// Decision is one validated trading decision. For buys Amount is cash to
// spend; for sells it is asset quantity; for holds it is 0.
type Decision struct {
	Asset     string  `json:"asset"`
	Action    string  `json:"action"`
	Amount    float64 `json:"amount"`
	Reasoning string  `json:"reasoning"`
}

// newsSnippets is a fixed rotation of market context phrases included in
// each prompt. No live news feed is consulted.
var newsSnippets = []string{
	"Bitcoin sees strong institutional buying",
	"Ethereum network upgrade scheduled",
	"Major exchange reports record trading volume",
	"Crypto market shows resilience amid volatility",
	"Whale accumulation detected in SOL",
	"Market sentiment remains bullish",
	"Technical indicators suggest upward momentum",
	"DeFi protocols report increased activity",
}

// Adapter turns a trader's state and the current market into a prompt,
// obtains a decision from the trader's model and validates it. Any provider
// failure or invalid output is replaced by a hold so a cycle never stalls
// on one model.
type Adapter struct {
	provider  Provider
	logger    *zap.Logger
	topAssets int
	newsIndex int
}

// NewAdapter creates a decision adapter on top of the given provider.
// topAssets bounds the market table included in each prompt.
func NewAdapter(provider Provider, topAssets int, logger *zap.Logger) *Adapter {
	return &Adapter{
		provider:  provider,
		logger:    logger,
		topAssets: topAssets,
	}
}

// Fallback returns the deterministic hold decision substituted on any
// provider or validation failure.
func Fallback() Decision {
	return Decision{
		Asset:     "BTC",
		Action:    models.ActionHold,
		Amount:    0,
		Reasoning: FallbackReasoning,
	}
}

// Decide obtains one decision for the trader. It never returns an error;
// failures are logged and mapped to the fallback hold.
func (a *Adapter) Decide(ctx context.Context, trader *models.Trader, data market.Data, portfolioValue float64, holdings []models.Position) Decision {
	prompt := a.BuildPrompt(trader, data, portfolioValue, holdings)

	content, err := a.provider.Decide(ctx, trader.ModelName, prompt)
	if err != nil {
		a.logger.Warn("Decision provider failed, falling back to hold",
			zap.String("trader", trader.Name), zap.Error(err))
		return Fallback()
	}

	decision, err := parseDecision(content)
	if err != nil {
		a.logger.Warn("Invalid decision output, falling back to hold",
			zap.String("trader", trader.Name),
			zap.String("content", content),
			zap.Error(err))
		return Fallback()
	}

	return decision
}

// parseDecision parses and validates raw model output.
func parseDecision(content string) (Decision, error) {
	var d Decision
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return Decision{}, fmt.Errorf("malformed decision JSON: %w", err)
	}

	if strings.TrimSpace(d.Asset) == "" {
		return Decision{}, fmt.Errorf("invalid asset: %q", d.Asset)
	}
	switch d.Action {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
	default:
		return Decision{}, fmt.Errorf("invalid action: %q", d.Action)
	}
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) || d.Amount < 0 {
		return Decision{}, fmt.Errorf("invalid amount: %v", d.Amount)
	}

	d.Asset = strings.ToUpper(strings.TrimSpace(d.Asset))
	return d, nil
}

// BuildPrompt renders the structured market/portfolio summary sent to the
// model. Output is deterministic for given inputs apart from the rotating
// news snippet.
func (a *Adapter) BuildPrompt(trader *models.Trader, data market.Data, portfolioValue float64, holdings []models.Position) string {
	profitLoss := portfolioValue - trader.InitialBalance
	profitLossPct := 0.0
	if trader.InitialBalance > 0 {
		profitLossPct = profitLoss / trader.InitialBalance * 100
	}

	positionsText := "None (all cash)"
	if len(holdings) > 0 {
		lines := make([]string, 0, len(holdings))
		for _, h := range holdings {
			currentPrice := h.AverageBuyPrice
			if entry, ok := data[h.Asset]; ok {
				currentPrice = entry.Price
			}
			positionPL := (currentPrice - h.AverageBuyPrice) / h.AverageBuyPrice * 100
			plSign := ""
			if positionPL >= 0 {
				plSign = "+"
			}
			lines = append(lines, fmt.Sprintf("%.4f %s @ $%.2f (Current: $%.2f, P/L: %s%.2f%%)",
				h.Quantity, h.Asset, h.AverageBuyPrice, currentPrice, plSign, positionPL))
		}
		positionsText = strings.Join(lines, "\n   ")
	}

	top := market.TopAssets(data, a.topAssets)
	marketLines := make([]string, 0, len(top))
	for _, asset := range top {
		entry := data[asset]
		changeSign := ""
		if entry.Change24h >= 0 {
			changeSign = "+"
		}
		marketLines = append(marketLines, fmt.Sprintf("- %s: $%.2f (24h: %s%.2f%%)",
			asset, entry.Price, changeSign, entry.Change24h))
	}

	news := newsSnippets[a.newsIndex%len(newsSnippets)]
	a.newsIndex++

	return fmt.Sprintf(`You are %s, a professional cryptocurrency trader managing a perpetual futures trading account.

YOUR PERSONALITY & STYLE:
%s

ACCOUNT PERFORMANCE:
- Starting Balance: $%.2f
- Current Portfolio Value: $%.2f
- Profit/Loss: $%.2f (%.2f%%)
- Available Cash: $%.2f

CURRENT POSITIONS:
   %s

MARKET DATA - Top %d by Volume (%d total assets available):
%s

NOTE: You can trade ANY of the %d perpetual contracts available on this exchange, not just those listed above. Popular options include BTC, ETH, SOL, AVAX, BNB, MATIC, ATOM, DOT, UNI, LINK, DOGE, and many more.

RECENT MARKET NEWS:
%s

TRADING INSTRUCTIONS:
Based on the above information, make ONE trading decision right now:

1. SELECT ASSET: Choose ANY perpetual contract (e.g., BTC, ETH, SOL, AVAX, etc.)
2. CHOOSE ACTION:
   - "buy" = Open or add to long position
   - "sell" = Close or reduce existing position (you must own the asset)
   - "hold" = No action this cycle
3. SPECIFY AMOUNT:
   - If BUYING: Amount in USD to spend (e.g., 50 means spend $50)
   - If SELLING: Quantity of asset to sell (e.g., 0.5 means sell 0.5 BTC)
   - If HOLDING: Set to 0
4. EXPLAIN REASONING: Brief 1-2 sentence explanation

IMPORTANT RULES:
- Your trading style should reflect your personality above
- You CANNOT buy more than your available cash balance ($%.2f)
- You CANNOT sell assets you don't own
- Consider your current positions and whether to take profits, cut losses, or hold
- Consider market momentum, trends, and your risk tolerance
- You can trade ANY perpetual contract available on the exchange

Respond ONLY with valid JSON in this exact format:
{
  "asset": "BTC",
  "action": "buy",
  "amount": 50,
  "reasoning": "Your brief explanation based on market analysis"
}`,
		trader.Name,
		trader.Personality,
		trader.InitialBalance,
		portfolioValue,
		profitLoss,
		profitLossPct,
		trader.CurrentBalance,
		positionsText,
		len(top),
		len(data),
		strings.Join(marketLines, "\n"),
		len(data),
		news,
		trader.CurrentBalance,
	)
}
