package storage

import (
	"context"
	"sort"
	"strings"
	"testing"
)

type memStore struct{ m map[string]*Object }

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) Put(_ context.Context, key string, data []byte, ct string) error {
	s.m[key] = &Object{Data: data, ContentType: ct}
	return nil
}
func (s *memStore) Get(_ context.Context, key string) (*Object, error) {
	if o, ok := s.m[key]; ok {
		return o, nil
	}
	return nil, ErrNotFound
}
func (s *memStore) Close() error { return nil }

func TestRegisterAndNew(t *testing.T) {
	Register("mem-test", func(context.Context, Config) (Store, error) {
		return &memStore{m: map[string]*Object{}}, nil
	})
	st, err := New(context.Background(), Config{Kind: "mem-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := st.Get(context.Background(), "x"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	kinds := Kinds()
	sort.Strings(kinds)
	if i := sort.SearchStrings(kinds, "mem-test"); i == len(kinds) || kinds[i] != "mem-test" {
		t.Fatalf("kind not listed: %v", kinds)
	}

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	f := func(context.Context, Config) (Store, error) { return nil, nil }
	Register("dup-test", f)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", f)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{Key("abc", OriginalCSV), true},
		{"abc/nested/profile.json", true},
		{"", false},
		{"/abs/path", false},
		{"../escape", false},
		{"a/../b", false},
		{"a//b", false},
		{`a\b`, false},
	}
	for _, tc := range tests {
		if err := ValidateKey(tc.key); (err == nil) != tc.ok {
			t.Fatalf("ValidateKey(%q) err=%v, want ok=%v", tc.key, err, tc.ok)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"a/original.csv": "text/csv",
		"a/profile.JSON": "application/json",
		"a/blob":         "application/octet-stream",
	}
	for key, want := range cases {
		if got := ContentTypeFor(key); got != want {
			t.Fatalf("ContentTypeFor(%q)=%q, want %q", key, got, want)
		}
	}
}
