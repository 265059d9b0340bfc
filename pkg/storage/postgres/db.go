package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/huddlehq/huddle/pkg/config"
)

// DB wraps the relational store connection pool
type DB struct {
	*sql.DB
}

// NewDB opens a connection pool to the secondary store and verifies it
func NewDB(ctx context.Context, cfg config.PostgresConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{DB: db}, nil
}

// Ping verifies the connection, for health probes
func (d *DB) Ping(ctx context.Context) error {
	return d.PingContext(ctx)
}
