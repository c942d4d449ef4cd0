// Package database opens the application's PostgreSQL connection pool.
//
// The pool registers pgvector types on every connection so []float32
// vectors can be bound and scanned directly. Schema migrations must run
// before the pool is opened (the vector extension has to exist before
// pgvector types can be registered); Connect does both in order.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/System-AI-Assistants/FocusML/db"
	"github.com/System-AI-Assistants/FocusML/internal/config"
	"github.com/System-AI-Assistants/FocusML/internal/log"
)

// Open creates a pgx connection pool for the given postgres:// URL and
// verifies connectivity with a ping.
func Open(ctx context.Context, connURL string, logger log.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database)

	return pool, nil
}

// Connect runs migrations and then opens the pool. This is the normal
// startup path for the server and CLI commands.
func Connect(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	connURL := cfg.PostgresURL()

	if err := db.Migrate(connURL); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return Open(ctx, connURL, logger)
}
