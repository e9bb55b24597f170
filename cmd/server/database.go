package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/taskhive/taskhive-api/internal/config"
	redisPlatform "github.com/taskhive/taskhive-api/internal/platform/redis"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
)

// setupDatabase establishes a connection to Postgres and configures the
// connection pool. Returns the connection if the initial ping succeeds.
func setupDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}

// setupRedis dials the cache/bus backend and verifies it is reachable.
// Cache reads degrade to the source of truth on backend failure, but a
// misconfigured URL should still fail startup loudly.
func setupRedis(ctx context.Context, cfg *config.Config, log *slog.Logger) (*goredis.Client, error) {
	client, err := redisPlatform.NewClient(cfg.Cache.RedisURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("redis connection established")
	return client, nil
}
