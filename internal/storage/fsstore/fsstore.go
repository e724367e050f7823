// Package fsstore stores artifacts as files under a local directory.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/dataprof/internal/storage"
	"github.com/KaramelBytes/dataprof/internal/utils"
)

func init() {
	storage.Register("fs", New)
}

// Store writes each key to <root>/<key>. Content types are derived from the
// key extension on read.
type Store struct {
	root string
}

// New returns a Store rooted at cfg.Dir.
func New(_ context.Context, cfg storage.Config) (storage.Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("fsstore: storage_dir is required")
	}
	return &Store{root: cfg.Dir}, nil
}

func (s *Store) Init(context.Context) error {
	if err := utils.EnsureDir(s.root); err != nil {
		return fmt.Errorf("fsstore: %w", err)
	}
	return nil
}

func (s *Store) path(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(p, data); err != nil {
		return fmt.Errorf("fsstore put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fsstore get %s: %w", key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("fsstore get %s: %w", key, err)
	}
	return &storage.Object{Data: b, ContentType: storage.ContentTypeFor(key)}, nil
}

func (s *Store) Close() error { return nil }
