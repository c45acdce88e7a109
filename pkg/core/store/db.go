package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"docsamajh/pkg/core/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotInitialized is returned by every repository when no database is
// configured.
var ErrNotInitialized = errors.New("database pool not initialized")

//go:embed migrations/schema.sql
var schemaSQL string

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the database connection pool. An empty url falls back
// to the DATABASE_URL environment variable.
func InitDB(ctx context.Context, url string) error {
	var err error
	once.Do(func() {
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(url)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			pool = nil
			err = fmt.Errorf("failed to reach database: %w", pingErr)
			return
		}
		logging.WithComponent("store").Info("database pool ready")
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	if p == nil {
		return ErrNotInitialized
	}
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
