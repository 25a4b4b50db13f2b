package market

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ai-trading-arena/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AssetPrice is the market view of one asset: the current price plus
// best-effort 24h stats.
type AssetPrice struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
}

// Data maps asset symbol to its current market view.
type Data map[string]AssetPrice

// CoinStats is one entry of the stats provider's markets response.
type CoinStats struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	PriceChange24 float64 `json:"price_change_percentage_24h"`
	TotalVolume   float64 `json:"total_volume"`
}

// ProviderInterface defines the outbound market data API surface.
type ProviderInterface interface {
	GetAllMids(ctx context.Context) (map[string]string, error)
	GetMarketStats(ctx context.Context, ids []string) ([]CoinStats, error)
}

// Client fetches prices from the perpetuals exchange info endpoint and 24h
// stats from a secondary provider. It implements ProviderInterface.
type Client struct {
	client   *resty.Client
	infoURL  string
	statsURL string
	logger   *zap.Logger
	limiter  *rate.Limiter
}

var _ ProviderInterface = (*Client)(nil)

// NewClient creates a new market data client.
func NewClient(cfg *config.Market, logger *zap.Logger) *Client {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	// rate.Limit is requests per second, shared across both providers.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:   client,
		infoURL:  cfg.InfoURL,
		statsURL: cfg.StatsURL,
		logger:   logger,
		limiter:  limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetAllMids fetches the current mid price for every listed perpetual.
// Prices come back as strings keyed by symbol.
func (c *Client) GetAllMids(ctx context.Context) (map[string]string, error) {
	var mids map[string]string

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"type": "allMids"}).
		SetResult(&mids)

	_, err := c.doRequest(ctx, "POST", c.infoURL, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get all mids: %w", err)
	}

	return mids, nil
}

// GetMarketStats fetches 24h change and volume for the given provider coin
// ids from the stats endpoint.
func (c *Client) GetMarketStats(ctx context.Context, ids []string) ([]CoinStats, error) {
	var stats []CoinStats

	req := c.client.R().
		SetQueryParams(map[string]string{
			"vs_currency":             "usd",
			"ids":                     strings.Join(ids, ","),
			"order":                   "market_cap_desc",
			"per_page":                "100",
			"page":                    "1",
			"sparkline":               "false",
			"price_change_percentage": "24h",
		}).
		SetResult(&stats)

	_, err := c.doRequest(ctx, "GET", c.statsURL+"/coins/markets", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get market stats: %w", err)
	}

	return stats, nil
}
