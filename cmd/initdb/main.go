// Command initdb wipes all arena data and re-creates the trader roster with
// fresh starting balances. The engine itself never deletes trades; this is
// the only tool that does.
package main

import (
	"fmt"

	"ai-trading-arena/internal/config"
	"ai-trading-arena/internal/database"
	"ai-trading-arena/internal/logger"
	"ai-trading-arena/internal/models"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	log.Info("Clearing all existing data...")
	for _, model := range []interface{}{
		&models.Trade{},
		&models.Position{},
		&models.MarketSnapshot{},
		&models.Trader{},
	} {
		if err := db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			log.Fatal("Failed to clear table", zap.Error(err))
		}
	}

	log.Info("Creating fresh traders", zap.Float64("starting_balance", cfg.Arena.StartingBalance))
	if err := database.Seed(db, cfg.Arena.StartingBalance); err != nil {
		log.Fatal("Failed to seed traders", zap.Error(err))
	}

	var count int64
	db.Model(&models.Trader{}).Count(&count)
	log.Info("Database reset complete", zap.Int64("traders", count))
}
