package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Options configures the history pool. Each beaverify request writes one
// row, so the pool stays small and drops idle connections.
type Options struct {
	URL            string
	MaxConns       int32         // <= 0 uses defaultMaxConns
	ConnectTimeout time.Duration // bounds the startup ping; <= 0 uses 10s
}

const (
	defaultMaxConns       = 4
	defaultConnectTimeout = 10 * time.Second
	idleConnTimeout       = 5 * time.Minute
)

// DB holds the transcript history pool.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func poolConfig(opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = opts.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = idleConnTimeout
	cfg.HealthCheckPeriod = time.Minute
	return cfg, nil
}

// Connect opens the pool, pings it within ConnectTimeout, and applies
// pending migrations.
func Connect(ctx context.Context, opts Options, log zerolog.Logger) (*DB, error) {
	cfg, err := poolConfig(opts)
	if err != nil {
		return nil, err
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool %s: %w", maskDSN(opts.URL), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", maskDSN(opts.URL), err)
	}

	db := &DB{Pool: pool, log: log}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("url", maskDSN(opts.URL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("transcript history enabled")
	return db, nil
}

// HealthCheck pings the pool with a short deadline.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// maskDSN hides the password in a connection URL for logs and errors.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

func (db *DB) Close() {
	db.log.Info().Msg("closing history pool")
	db.Pool.Close()
}
