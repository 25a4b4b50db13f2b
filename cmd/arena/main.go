package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-trading-arena/internal/arena"
	"ai-trading-arena/internal/config"
	"ai-trading-arena/internal/database"
	"ai-trading-arena/internal/decision"
	"ai-trading-arena/internal/logger"
	"ai-trading-arena/internal/market"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database and seed the trader roster
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Seed(db, cfg.Arena.StartingBalance); err != nil {
		log.Fatal("Failed to seed traders", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Market data: provider client behind the TTL cache
	marketClient := market.NewClient(&cfg.Market, log.Named("market"))
	cache := market.NewCache(marketClient, time.Duration(cfg.Market.CacheTTL)*time.Second, log.Named("price-cache"))

	// Decision provider and adapter
	provider := decision.NewOpenRouterClient(&cfg.OpenRouter, log.Named("openrouter"))
	adapter := decision.NewAdapter(provider, cfg.Arena.TopAssets, log.Named("decision"))

	// Ledger and leaderboard
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	settler := arena.NewSettler(db, rng, log.Named("settler"))
	leaderboard := arena.NewLeaderboard(db, cfg.Arena.LiquidationThreshold, log.Named("leaderboard"))

	engine := arena.NewEngine(log.Named("engine"), &cfg, db, cache, adapter, settler, leaderboard, rng)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	apiServer := arena.NewAPIServer(engine, log)
	apiServer.Start()

	engine.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Arena has been shut down.")
}
