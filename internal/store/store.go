package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Options holds store-owned policy settings.
type Options struct {
	RetentionMaxAge time.Duration // Messages older than this are eligible for retention deletion
	HistoryLimit    int           // Max messages returned by ListMessages
}

// Store provides access to all durable records.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

// New creates a Store over an existing connection pool.
func New(pool *pgxpool.Pool, opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 200
	}
	if opts.RetentionMaxAge <= 0 {
		opts.RetentionMaxAge = 24 * time.Hour
	}
	return &Store{pool: pool, opts: opts}
}

// Ping verifies the database connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
