package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockProvider is a mock implementation of ProviderInterface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetAllMids(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockProvider) GetMarketStats(ctx context.Context, ids []string) ([]CoinStats, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]CoinStats), args.Error(1)
}

func TestGetPrices_FetchAndEnrich(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, 30*time.Second, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{
		"BTC": "68000.5",
		"ETH": "2500",
		"XYZ": "1.25",
	}, nil).Once()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{
		{ID: "bitcoin", Symbol: "btc", PriceChange24: 2.5, TotalVolume: 25000000000},
		{ID: "ethereum", Symbol: "eth", PriceChange24: -1.2, TotalVolume: 12000000000},
	}, nil).Once()

	data := cache.GetPrices(context.Background())

	assert.Len(t, data, 3)
	assert.Equal(t, 68000.5, data["BTC"].Price)
	assert.Equal(t, 2.5, data["BTC"].Change24h)
	assert.Equal(t, -1.2, data["ETH"].Change24h)

	// Assets outside the major-coin set carry price only.
	assert.Equal(t, 1.25, data["XYZ"].Price)
	assert.Zero(t, data["XYZ"].Change24h)
	assert.Zero(t, data["XYZ"].Volume24h)

	provider.AssertExpectations(t)
}

func TestGetPrices_ServesCachedSnapshotWithinTTL(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, 30*time.Second, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{"BTC": "68000"}, nil).Once()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, nil).Once()

	first := cache.GetPrices(context.Background())
	second := cache.GetPrices(context.Background())

	// Second call never reaches the provider (Once above would fail it).
	assert.Equal(t, first, second)
	provider.AssertExpectations(t)
}

func TestGetPrices_ExpiredTTLRefetches(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, time.Nanosecond, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{"BTC": "68000"}, nil).Twice()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, nil).Twice()

	cache.GetPrices(context.Background())
	time.Sleep(time.Millisecond)
	cache.GetPrices(context.Background())

	provider.AssertExpectations(t)
}

func TestGetPrices_PrimaryFailureReturnsFallback(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, 30*time.Second, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{}, errors.New("provider down")).Once()

	data := cache.GetPrices(context.Background())

	// The hardcoded fallback keeps the core assets tradable.
	assert.Equal(t, 68432.12, data["BTC"].Price)
	assert.Equal(t, 2567.89, data["ETH"].Price)
	assert.Equal(t, 142.56, data["SOL"].Price)

	// The failed fetch is not cached; a later call retries the provider.
	provider.On("GetAllMids", mock.Anything).Return(map[string]string{"BTC": "70000"}, nil).Once()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, nil).Once()
	data = cache.GetPrices(context.Background())
	assert.Equal(t, 70000.0, data["BTC"].Price)

	provider.AssertExpectations(t)
}

func TestGetPrices_EnrichmentFailureKeepsPrices(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, 30*time.Second, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{"BTC": "68000"}, nil).Once()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, errors.New("stats down")).Once()

	data := cache.GetPrices(context.Background())

	// Price is authoritative; 24h stats default to zero.
	assert.Equal(t, 68000.0, data["BTC"].Price)
	assert.Zero(t, data["BTC"].Change24h)
	assert.Zero(t, data["BTC"].Volume24h)

	provider.AssertExpectations(t)
}

func TestGetPrices_UnparsablePriceSkipped(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, 30*time.Second, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{
		"BTC": "68000",
		"BAD": "not-a-number",
	}, nil).Once()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, nil).Once()

	data := cache.GetPrices(context.Background())

	assert.Len(t, data, 1)
	assert.Contains(t, data, "BTC")
}

func TestReset_ForcesRefetch(t *testing.T) {
	provider := new(MockProvider)
	cache := NewCache(provider, time.Hour, zap.NewNop())

	provider.On("GetAllMids", mock.Anything).Return(map[string]string{"BTC": "68000"}, nil).Twice()
	provider.On("GetMarketStats", mock.Anything, mock.Anything).Return([]CoinStats{}, nil).Twice()

	cache.GetPrices(context.Background())
	cache.Reset()
	cache.GetPrices(context.Background())

	provider.AssertExpectations(t)
}

func TestTopAssets_RanksByVolume(t *testing.T) {
	data := Data{
		"BTC": {Price: 68000, Volume24h: 25000000000},
		"ETH": {Price: 2500, Volume24h: 12000000000},
		"SOL": {Price: 140, Volume24h: 2500000000},
		"XYZ": {Price: 1, Volume24h: 0},
	}

	top := TopAssets(data, 2)
	assert.Equal(t, []string{"BTC", "ETH"}, top)

	all := TopAssets(data, 10)
	assert.Len(t, all, 4)
	assert.Equal(t, "BTC", all[0])
}
