package arena

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ai-trading-arena/internal/config"
	"ai-trading-arena/internal/decision"
	"ai-trading-arena/internal/market"
	"ai-trading-arena/internal/models"
	"ai-trading-arena/internal/roster"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrCycleInFlight is returned by TryRunCycle when a cycle is already
// executing. The engine performs no cross-cycle locking beyond this guard.
var ErrCycleInFlight = errors.New("a trade cycle is already in flight")

// coreAssets are snapshotted every cycle for the dashboard's history
// charts.
var coreAssets = []string{"BTC", "ETH", "SOL"}

// panicSellReasoning annotates a forced sell that overrode a buy decision.
const panicSellReasoning = "PANIC SELL! Market feels too risky right now!"

// Decider yields one validated decision per trader. Failures inside the
// implementation must be absorbed into a hold.
type Decider interface {
	Decide(ctx context.Context, trader *models.Trader, data market.Data, portfolioValue float64, holdings []models.Position) decision.Decision
}

// TraderResult is the per-trader outcome of one cycle.
type TraderResult struct {
	Trader  string  `json:"trader"`
	Asset   string  `json:"asset,omitempty"`
	Action  string  `json:"action,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Success bool    `json:"success"`
	Skipped bool    `json:"skipped,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// CycleSummary reports the outcome of one full trade cycle.
type CycleSummary struct {
	Timestamp time.Time      `json:"timestamp"`
	Market    market.Data    `json:"market"`
	Results   []TraderResult `json:"results"`
	Message   string         `json:"message,omitempty"`
}

// Engine drives the periodic decide/settle/rank pipeline across all active
// traders.
type Engine struct {
	logger      *zap.Logger
	cfg         *config.Config
	db          *gorm.DB
	cache       *market.Cache
	decider     Decider
	settler     *Settler
	leaderboard *Leaderboard
	rng         *rand.Rand

	// Guards against overlapping invocations from the ticker and the HTTP
	// trigger; everything downstream assumes a single writer.
	cycleMu sync.Mutex

	StartTime time.Time
}

// NewEngine creates the cycle orchestrator. The random source drives the
// panic-sell draw and position pick.
func NewEngine(logger *zap.Logger, cfg *config.Config, db *gorm.DB, cache *market.Cache, decider Decider, settler *Settler, leaderboard *Leaderboard, rng *rand.Rand) *Engine {
	return &Engine{
		logger:      logger,
		cfg:         cfg,
		db:          db,
		cache:       cache,
		decider:     decider,
		settler:     settler,
		leaderboard: leaderboard,
		rng:         rng,
		StartTime:   time.Now(),
	}
}

// Run executes trade cycles on the configured interval until the context is
// cancelled. Each cycle gets a deadline shy of the interval so a stuck
// provider call can never bleed into the next cycle.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Arena.CycleInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting trade cycle loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trade cycle loop...")
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, cycleDeadline(interval))
			if _, err := e.TryRunCycle(cycleCtx); err != nil {
				e.logger.Error("Trade cycle failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// cycleDeadline leaves a safety margin before the next tick.
func cycleDeadline(interval time.Duration) time.Duration {
	margin := interval / 10
	if margin > 30*time.Second {
		margin = 30 * time.Second
	}
	return interval - margin
}

// TryRunCycle runs one cycle unless another is already in flight, in which
// case it returns ErrCycleInFlight without waiting.
func (e *Engine) TryRunCycle(ctx context.Context) (*CycleSummary, error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer e.cycleMu.Unlock()
	return e.runCycle(ctx)
}

// runCycle executes the full pipeline: fetch prices, snapshot, one decision
// and settlement per active trader with per-trader failure isolation, then
// the leaderboard pass. It only errors when the trader roster itself cannot
// be read; everything per-trader is reported in the summary.
func (e *Engine) runCycle(ctx context.Context) (*CycleSummary, error) {
	e.logger.Info("Starting trade cycle...")

	data := e.cache.GetPrices(ctx)
	e.snapshotMarket(data)

	summary := &CycleSummary{
		Timestamp: time.Now(),
		Market:    data,
	}

	var traders []models.Trader
	if err := e.db.Where("status = ?", models.StatusActive).Find(&traders).Error; err != nil {
		return nil, fmt.Errorf("failed to load active traders: %w", err)
	}

	if len(traders) == 0 {
		e.logger.Info("No active traders, nothing to do")
		summary.Message = "no active traders"
		return summary, nil
	}

	e.logger.Info("Processing traders", zap.Int("count", len(traders)))

	for i := range traders {
		trader := &traders[i]

		// Traders not reached before the deadline are deferred to the next
		// cycle; settled traders are already committed.
		if ctx.Err() != nil {
			e.logger.Warn("Cycle deadline exceeded, deferring remaining traders",
				zap.Int("processed", i), zap.Int("deferred", len(traders)-i))
			break
		}

		summary.Results = append(summary.Results, e.processTrader(ctx, trader, data))
	}

	prices := make(map[string]float64, len(data))
	for asset, entry := range data {
		prices[asset] = entry.Price
	}
	if err := e.leaderboard.Refresh(prices); err != nil {
		e.logger.Error("Leaderboard refresh failed", zap.Error(err))
	}

	e.logger.Info("Trade cycle complete")
	return summary, nil
}

// processTrader runs decide then settle for one trader. Nothing it returns
// can abort the cycle.
func (e *Engine) processTrader(ctx context.Context, trader *models.Trader, data market.Data) TraderResult {
	result := TraderResult{Trader: trader.Name}

	if _, ok := roster.ByModelName(trader.ModelName); !ok {
		e.logger.Error("No roster model for trader",
			zap.String("trader", trader.Name), zap.String("model", trader.ModelName))
		result.Error = fmt.Sprintf("unknown model %q", trader.ModelName)
		return result
	}

	var holdings []models.Position
	if err := e.db.Where("trader_id = ?", trader.ID).Find(&holdings).Error; err != nil {
		e.logger.Error("Failed to load holdings",
			zap.String("trader", trader.Name), zap.Error(err))
		result.Error = "failed to load holdings"
		return result
	}

	portfolioValue := trader.CurrentBalance
	for _, h := range holdings {
		if entry, ok := data[h.Asset]; ok {
			portfolioValue += h.Quantity * entry.Price
		}
	}

	d := e.decider.Decide(ctx, trader, data, portfolioValue, holdings)
	e.logger.Info("Decision received",
		zap.String("trader", trader.Name),
		zap.String("action", d.Action),
		zap.String("asset", d.Asset),
		zap.Float64("amount", d.Amount))

	d = e.maybePanicSell(trader, d, holdings)
	result.Asset, result.Action, result.Amount = d.Asset, d.Action, d.Amount

	// A provider can quote "0" for a delisted pair; that parses fine but is
	// not a tradable price.
	entry, ok := data[d.Asset]
	if !ok || entry.Price <= 0 {
		e.logger.Warn("No usable price for asset, skipping trader",
			zap.String("trader", trader.Name), zap.String("asset", d.Asset))
		result.Skipped = true
		return result
	}

	trade, err := e.settler.Settle(trader, d, entry.Price)
	if err != nil {
		e.logger.Error("Settlement failed",
			zap.String("trader", trader.Name), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	if trade == nil {
		result.Skipped = true
		return result
	}

	result.Success = true
	return result
}

// maybePanicSell replaces a buy with a forced sell of half of one random
// existing position, with small probability. It shapes the decision only;
// the sell still goes through normal settlement checks.
func (e *Engine) maybePanicSell(trader *models.Trader, d decision.Decision, holdings []models.Position) decision.Decision {
	if d.Action != models.ActionBuy || len(holdings) == 0 {
		return d
	}
	if e.rng.Float64() >= e.cfg.Arena.PanicSellChance {
		return d
	}

	victim := holdings[e.rng.Intn(len(holdings))]
	e.logger.Warn("Panic sell triggered",
		zap.String("trader", trader.Name),
		zap.String("asset", victim.Asset))

	return decision.Decision{
		Asset:     victim.Asset,
		Action:    models.ActionSell,
		Amount:    victim.Quantity * 0.5,
		Reasoning: panicSellReasoning,
	}
}

// snapshotMarket records the core asset prices for this cycle. Snapshot
// failures are logged and ignored; they never block settlement.
func (e *Engine) snapshotMarket(data market.Data) {
	for _, asset := range coreAssets {
		entry, ok := data[asset]
		if !ok {
			continue
		}
		snapshot := models.MarketSnapshot{
			Asset:     asset,
			Price:     entry.Price,
			Change24h: entry.Change24h,
			Volume24h: entry.Volume24h,
		}
		if err := e.db.Create(&snapshot).Error; err != nil {
			e.logger.Error("Failed to store market snapshot",
				zap.String("asset", asset), zap.Error(err))
		}
	}
}
