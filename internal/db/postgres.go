package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	parsePoolConfig = pgxpool.ParseConfig
	newPool         = pgxpool.NewWithConfig
	pingPool        = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

type PoolOptions struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Connect opens a pgx pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}

	cfg, err := parsePoolConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Msg("connected to postgres")
	return pool, nil
}
