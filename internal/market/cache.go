package market

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// majorCoins maps exchange symbols to the stats provider's coin ids. Only
// these assets get 24h change/volume enrichment; everything else trades on
// price alone.
var majorCoins = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"AVAX":  "avalanche-2",
	"BNB":   "binancecoin",
	"MATIC": "matic-network",
	"ATOM":  "cosmos",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"UNI":   "uniswap",
}

// fallbackData is served when the primary price provider is unreachable, so
// a cycle can still settle against the core assets.
var fallbackData = Data{
	"BTC": {Price: 68432.12, Change24h: 2.5, Volume24h: 25000000000},
	"ETH": {Price: 2567.89, Change24h: 1.8, Volume24h: 12000000000},
	"SOL": {Price: 142.56, Change24h: -0.5, Volume24h: 2500000000},
}

// Cache wraps the market data provider with a short-lived snapshot cache.
// It is owned by the engine and refreshed at most once per TTL; the
// orchestrator guarantees at most one cycle runs at a time, so no locking
// is performed here.
type Cache struct {
	provider ProviderInterface
	logger   *zap.Logger
	ttl      time.Duration

	data      Data
	fetchedAt time.Time
}

// NewCache creates a price cache in front of the given provider.
func NewCache(provider ProviderInterface, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		provider: provider,
		logger:   logger,
		ttl:      ttl,
	}
}

// GetPrices returns the current market data, serving the cached snapshot
// while it is fresh. On primary provider failure a hardcoded fallback set
// is returned; on stats provider failure prices are served with zero-valued
// 24h stats.
func (c *Cache) GetPrices(ctx context.Context) Data {
	if c.data != nil && time.Since(c.fetchedAt) < c.ttl {
		return c.data
	}

	mids, err := c.provider.GetAllMids(ctx)
	if err != nil {
		c.logger.Error("Failed to fetch prices, using fallback data", zap.Error(err))
		return fallbackData
	}

	// Enrichment is best-effort: price is authoritative, 24h stats are not
	// worth failing the fetch over.
	statsBySymbol := make(map[string]CoinStats)
	ids := make([]string, 0, len(majorCoins))
	for _, id := range majorCoins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats, err := c.provider.GetMarketStats(ctx, ids)
	if err != nil {
		c.logger.Warn("Failed to fetch 24h stats, serving prices without enrichment", zap.Error(err))
	} else {
		for symbol, id := range majorCoins {
			for _, s := range stats {
				if s.ID == id {
					statsBySymbol[symbol] = s
					break
				}
			}
		}
	}

	data := make(Data, len(mids))
	for asset, priceStr := range mids {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			c.logger.Warn("Skipping asset with unparsable price",
				zap.String("asset", asset), zap.String("price", priceStr))
			continue
		}
		entry := AssetPrice{Price: price}
		if s, ok := statsBySymbol[asset]; ok {
			entry.Change24h = s.PriceChange24
			entry.Volume24h = s.TotalVolume
		}
		data[asset] = entry
	}

	c.logger.Info("Fetched market data", zap.Int("assets", len(data)))
	c.data = data
	c.fetchedAt = time.Now()

	return data
}

// Reset clears the cached snapshot, forcing the next GetPrices to hit the
// provider.
func (c *Cache) Reset() {
	c.data = nil
	c.fetchedAt = time.Time{}
}

// TopAssets returns the n symbols with the highest 24h volume.
func TopAssets(data Data, n int) []string {
	assets := make([]string, 0, len(data))
	for asset := range data {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		vi, vj := data[assets[i]].Volume24h, data[assets[j]].Volume24h
		if vi == vj {
			return assets[i] < assets[j]
		}
		return vi > vj
	})
	if len(assets) > n {
		assets = assets[:n]
	}
	return assets
}
