package database

import (
	"fmt"

	"autoinvest/src/config"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Migrate runs a goose command ("up", "down", "status", ...) with the SQL
// files found in dir.
func Migrate(cfg *config.SQLConfig, dir, command string) error {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB from GORM DB: %w", err)
	}
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Run(command, sqlDB, dir); err != nil {
		return fmt.Errorf("failed to run migrations (%s): %w", command, err)
	}
	return nil
}
