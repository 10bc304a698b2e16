package database

import (
	"context"
	"fmt"

	"autoinvest/src/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DSN builds the connection string unless one is configured explicitly.
func DSN(cfg *config.SQLConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.Port)
}

func SetupDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(DSN(&cfg.Databases.SQL))
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 5
	if cfg.Databases.SQL.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Databases.SQL.MaxConns
	}
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
