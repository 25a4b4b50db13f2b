package database

import (
	"fmt"

	"ai-trading-arena/internal/config"
	"ai-trading-arena/internal/models"
	"ai-trading-arena/internal/roster"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all arena entities.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Trader{},
		&models.Position{},
		&models.Trade{},
		&models.MarketSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Seed creates one active trader per roster model if it does not already
// exist. Existing traders are left untouched, so restarting the process
// never resets balances.
func Seed(db *gorm.DB, startingBalance float64) error {
	for _, m := range roster.All() {
		trader := models.Trader{
			Name:           m.Name,
			ModelName:      m.ModelIdentifier,
			Personality:    m.Personality,
			InitialBalance: startingBalance,
			CurrentBalance: startingBalance,
			Status:         models.StatusActive,
		}
		if err := db.FirstOrCreate(&trader, models.Trader{Name: m.Name}).Error; err != nil {
			return fmt.Errorf("failed to seed trader '%s': %w", m.Name, err)
		}
	}
	return nil
}
