// Package storage persists dataset artifacts (uploaded CSV, cleaned CSV,
// profile and metadata documents) behind a backend-agnostic Store.
//
// Backends register themselves by kind from an init() function; callers pick
// one with New and a Config.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when no artifact exists under a key.
var ErrNotFound = errors.New("storage: artifact not found")

// Artifact names written per dataset.
const (
	OriginalCSV  = "original.csv"
	CleanedCSV   = "cleaned.csv"
	ProfileJSON  = "profile.json"
	MetadataJSON = "metadata.json"
)

// Object is a stored artifact.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is implemented by every backend.
type Store interface {
	// Init prepares the backend (tables, buckets). It is idempotent.
	Init(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns ErrNotFound (possibly wrapped) for unknown keys.
	Get(ctx context.Context, key string) (*Object, error)
	Close() error
}

// S3Config holds the object-store settings.
type S3Config struct {
	Bucket         string
	Region         string
	AccessKey      string
	SecretKey      string
	Endpoint       string
	AllowedOrigins []string
}

// Config selects and configures a backend. Only the fields relevant to Kind
// are read.
type Config struct {
	Kind string
	Dir  string // fs
	DSN  string // sqlite, postgres
	S3   S3Config
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind. It panics on an empty kind,
// a nil factory or a second registration of the same kind.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()
	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}

// New constructs the backend registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}
	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unsupported storage_kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Key builds the storage key of a dataset artifact.
func Key(datasetID, artifact string) string {
	return datasetID + "/" + artifact
}

// ValidateKey rejects keys that could escape a backend's namespace.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage: empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return nil
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".md":
		return "text/markdown"
	}
	return "application/octet-stream"
}
