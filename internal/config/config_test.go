package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ServerAddr != ":8000" || c.MaxUploadMB != 32 || c.S3Region != "us-west-2" || c.S3Bucket != "my-app-bucket" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.StorageKind != "" || c.MetricsBackend != "none" || c.LogFormat != "text" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "cfg.yaml")
	body := "storage_kind: fs\nmax_rows: 100\nlog_level: debug\nallowed_origins: [\"https://a.example\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DATAPROF_LOG_LEVEL", "warn")
	t.Setenv("AWS_ACCESS_KEY", "AKIA123")
	t.Setenv("S3_BUCKET_NAME", "datasets")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MaxRows != 100 || c.StorageKind != "fs" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.LogLevel != "warn" {
		t.Fatalf("env should override file, got %q", c.LogLevel)
	}
	if c.S3AccessKey != "AKIA123" || c.S3Bucket != "datasets" {
		t.Fatalf("legacy env names not bound: %+v", c)
	}
	if want := filepath.Join(home, ".dataprof", "artifacts"); c.StorageDir != want {
		t.Fatalf("storage_dir=%q, want %q", c.StorageDir, want)
	}
	if !reflect.DeepEqual(c.AllowedOrigins, []string{"https://a.example"}) {
		t.Fatalf("allowed_origins=%v", c.AllowedOrigins)
	}
}

func TestLoad_MissingExplicitFileIsNotFatal(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for k, v := range map[string]string{
		"storage_kind":    "sqlite",
		"storage_dsn":     "/tmp/a.db",
		"max_upload_mb":   "8",
		"allowed_origins": "https://a.example, https://b.example",
		"ai_provider":     "Ollama",
	} {
		if err := c.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	if err := Save(c, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".dataprof", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	back, err := Load("")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.StorageKind != "sqlite" || back.StorageDSN != "/tmp/a.db" || back.MaxUploadMB != 8 || back.AIProvider != "ollama" {
		t.Fatalf("values not persisted: %+v", back)
	}
	if len(back.AllowedOrigins) != 2 || back.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins not persisted: %v", back.AllowedOrigins)
	}
}

func TestSet_Rejects(t *testing.T) {
	c := &Global{}
	tests := []struct{ key, val string }{
		{"nope", "x"},
		{"storage_kind", "ftp"},
		{"max_rows", "-1"},
		{"temperature", "hot"},
		{"log_format", "xml"},
	}
	for _, tc := range tests {
		if err := c.Set(tc.key, tc.val); err == nil {
			t.Fatalf("Set(%s, %s) should fail", tc.key, tc.val)
		}
	}
	if len(Keys()) == 0 || Keys()[0] != "ai_model" {
		t.Fatalf("Keys not sorted: %v", Keys())
	}
}
