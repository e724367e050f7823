package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

func TestNew_ConfigErrors(t *testing.T) {
	if _, err := New(context.Background(), storage.Config{Kind: "postgres"}); err == nil {
		t.Fatalf("expected error without dsn")
	}
	if _, err := New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://%zz"}); err == nil {
		t.Fatalf("expected parse error for malformed dsn")
	}
}

// TestStore_RoundTrip runs against a live database when
// DATAPROF_TEST_POSTGRES_DSN is set.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("DATAPROF_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DATAPROF_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	key := storage.Key("pgstore-test", storage.ProfileJSON)
	for _, body := range []string{`{"v":1}`, `{"v":2}`} {
		if err := st.Put(ctx, key, []byte(body), ""); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	obj, err := st.Get(ctx, key)
	if err != nil || string(obj.Data) != `{"v":2}` || obj.ContentType != "application/json" {
		t.Fatalf("Get: %v %+v", err, obj)
	}
	if _, err := st.Get(ctx, "pgstore-test/absent.csv"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
