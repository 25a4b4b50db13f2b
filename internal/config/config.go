package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Market     Market     `mapstructure:"market"`
	OpenRouter OpenRouter `mapstructure:"openrouter"`
	Arena      Arena      `mapstructure:"arena"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
}

// Market holds the configuration for the market data providers.
type Market struct {
	InfoURL        string  `mapstructure:"info_url"`
	StatsURL       string  `mapstructure:"stats_url"`
	CacheTTL       int     `mapstructure:"cache_ttl"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// OpenRouter holds the configuration for the decision provider API.
type OpenRouter struct {
	ApiKey         string `mapstructure:"apiKey"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Arena holds the configuration for the trade-cycle engine.
type Arena struct {
	CycleInterval        int     `mapstructure:"cycle_interval"`
	StartingBalance      float64 `mapstructure:"starting_balance"`
	LiquidationThreshold float64 `mapstructure:"liquidation_threshold"`
	PanicSellChance      float64 `mapstructure:"panic_sell_chance"`
	TopAssets            int     `mapstructure:"top_assets"`
}

// Server holds the configuration for the API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("market.info_url", "https://api.hyperliquid.xyz/info")
	viper.SetDefault("market.stats_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("market.cache_ttl", 30) // seconds
	viper.SetDefault("market.timeout_seconds", 15)
	viper.SetDefault("market.rate_limit", 10)      // requests per second
	viper.SetDefault("market.rate_limit_burst", 5) // burst size
	viper.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("openrouter.timeout_seconds", 60)
	viper.SetDefault("arena.cycle_interval", 300) // seconds
	viper.SetDefault("arena.starting_balance", 250)
	viper.SetDefault("arena.liquidation_threshold", 10)
	viper.SetDefault("arena.panic_sell_chance", 0.1)
	viper.SetDefault("arena.top_assets", 20)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
