// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

// Package store provides PostgreSQL connection management and schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectRetryBase = 500 * time.Millisecond
	connectRetryMax  = 5
)

// Pool wraps a pgx connection pool with lifecycle helpers.
type Pool struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a connection pool against the given database URL. The initial
// ping retries with exponential backoff so the process survives a database
// that is still starting up.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("INVALID_CONFIG").Errorf("database URL required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("INVALID_CONFIG").With("operation", "parse database URL").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectRetryMax, retry.NewFibonacci(connectRetryBase))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.Warn("database not ready, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", pingErr.Error()))
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}

	return &Pool{pool: pool, logger: logger}, nil
}

// Pgx returns the underlying pgx pool for repository construction.
func (p *Pool) Pgx() *pgxpool.Pool {
	return p.pool
}

// Ping verifies the database connection is alive. Used by readiness checks.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}
