// Package pgstore keeps artifacts in a Postgres "artifacts" table through a
// pgx connection pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	key          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	data         BYTEA NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements storage.Store on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN. Connections are established lazily.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgstore: storage_dsn is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create table artifacts: %w", err)
	}
	return nil
}

// Put upserts the artifact under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = storage.ContentTypeFor(key)
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO artifacts (key, content_type, data) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data, created_at = now()`,
		key, contentType, data)
	if err != nil {
		return fmt.Errorf("pgstore put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	var obj storage.Object
	err := s.pool.QueryRow(ctx, `SELECT content_type, data FROM artifacts WHERE key = $1`, key).
		Scan(&obj.ContentType, &obj.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pgstore get %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore get %s: %w", key, err)
	}
	return &obj, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
