// Package postgres is the relational backend for verification records and user lookup.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phone-verify/internal/domain"
)

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("invalid DATABASE_URL")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("postgres connection established")
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS phone_verifications (
	id          TEXT PRIMARY KEY,
	phone       TEXT NOT NULL,
	code_hash   TEXT NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	consumed_at TIMESTAMPTZ,
	attempts    INTEGER NOT NULL DEFAULT 0,
	version     BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS phone_verifications_open_phone
	ON phone_verifications (phone) WHERE consumed_at IS NULL;
CREATE INDEX IF NOT EXISTS phone_verifications_expires_at
	ON phone_verifications (expires_at);

CREATE TABLE IF NOT EXISTS users (
	user_id    TEXT PRIMARY KEY,
	phone      TEXT,
	role       TEXT NOT NULL DEFAULT 'user',
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Migrate creates the tables and indexes if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: migrate: %w", domain.ErrStorePersistence, err)
	}
	return nil
}
