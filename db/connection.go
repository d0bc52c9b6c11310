// Package db manages the pgx connection pool for the analytics
// warehouse and executes sandboxed queries against it.
//
// Design decisions:
//   - Uses pgxpool for connection pooling (safe for concurrent access).
//   - The pool credentials must belong to a read-only database user.
//     On top of that, every session forces read-only transactions and a
//     server-side statement timeout, so even a statement that slipped
//     past the sandbox cannot write or run unbounded.
//   - SSH tunnel integration is transparent: when enabled, the tunnel
//     is established first and pgx connects to the local endpoint.
package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storeql/storeql/config"
	"github.com/storeql/storeql/ssh"
)

// DB wraps a pgx connection pool and optional SSH tunnel.
type DB struct {
	Pool   *pgxpool.Pool
	Tunnel *ssh.Tunnel
}

// Connect establishes the warehouse connection, optionally through an
// SSH tunnel.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	d := &DB{}

	if cfg.SSH.Enabled {
		tunnel, err := ssh.NewTunnel(cfg.SSH, cfg.Host, cfg.Port)
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel: %w", err)
		}
		localHost, localPort, err := tunnel.Open()
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel open: %w", err)
		}
		d.Tunnel = tunnel

		cfg.Host = localHost
		cfg.Port = localPort
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("pgx config: %w", err)
	}

	// Server-side guard rails, independent of anything the application
	// layer does with contexts.
	timeoutMs := cfg.StatementTimeout.Milliseconds()
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(timeoutMs, 10)
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgx connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if d.Tunnel != nil {
			d.Tunnel.Close()
		}
		return nil, fmt.Errorf("pgx ping: %w", err)
	}

	d.Pool = pool
	return d, nil
}

// Close shuts down the pool and SSH tunnel.
func (d *DB) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Tunnel != nil {
		d.Tunnel.Close()
	}
}
