// Package sqlitestore keeps artifacts in an "artifacts" table of a SQLite
// database (modernc.org/sqlite, no cgo) accessed through sqlx.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	key          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	data         BLOB NOT NULL,
	created_at   TEXT NOT NULL
)`

// Store implements storage.Store on SQLite.
type Store struct {
	db *sqlx.DB
}

type row struct {
	ContentType string `db:"content_type"`
	Data        []byte `db:"data"`
}

// New opens the database at cfg.DSN (a file path or "file::memory:?cache=shared").
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlitestore: storage_dsn is required")
	}
	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore open: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore ping: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table artifacts: %w", err)
	}
	return nil
}

// Put inserts or replaces the artifact under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if contentType == "" {
		contentType = storage.ContentTypeFor(key)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (key, content_type, data, created_at) VALUES (?, ?, ?, ?)`,
		key, contentType, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT content_type, data FROM artifacts WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlitestore get %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore get %s: %w", key, err)
	}
	return &storage.Object{Data: r.Data, ContentType: r.ContentType}, nil
}

func (s *Store) Close() error { return s.db.Close() }
