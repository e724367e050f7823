package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Loading
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`

	// Artifact storage; an empty kind disables persistence.
	StorageKind string `mapstructure:"storage_kind" yaml:"storage_kind"`
	StorageDir  string `mapstructure:"storage_dir" yaml:"storage_dir"`
	StorageDSN  string `mapstructure:"storage_dsn" yaml:"storage_dsn"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	S3AccessKey string `mapstructure:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key" yaml:"s3_secret_key"`
	S3Endpoint  string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`

	// HTTP server
	ServerAddr     string   `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// AI metadata
	APIKey       string  `mapstructure:"api_key" yaml:"api_key"`
	AIProvider   string  `mapstructure:"ai_provider" yaml:"ai_provider"`
	AIModel      string  `mapstructure:"ai_model" yaml:"ai_model"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	PromptTokens int     `mapstructure:"prompt_tokens" yaml:"prompt_tokens"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	OllamaHost   string  `mapstructure:"ollama_host" yaml:"ollama_host"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Metrics
	MetricsBackend  string `mapstructure:"metrics_backend" yaml:"metrics_backend"`
	MetricsTags     string `mapstructure:"metrics_tags" yaml:"metrics_tags"`
	MetricsFlushSec int    `mapstructure:"metrics_flush_sec" yaml:"metrics_flush_sec"`
}

// Dir returns ~/.dataprof.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dataprof"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataprof/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// the file may carry credentials
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("max_rows", 0)
	v.SetDefault("storage_kind", "")
	v.SetDefault("s3_bucket", "my-app-bucket")
	v.SetDefault("s3_region", "us-west-2")
	v.SetDefault("server_addr", ":8000")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("ai_provider", "openrouter")
	v.SetDefault("ai_model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 800)
	v.SetDefault("prompt_tokens", 3000)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("metrics_backend", "none")
	v.SetDefault("metrics_flush_sec", 60)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("DATAPROF")
	v.AutomaticEnv()
	setDefaults(v)

	// Names used by existing deployments of the upload service.
	_ = v.BindEnv("s3_access_key", "DATAPROF_S3_ACCESS_KEY", "AWS_ACCESS_KEY")
	_ = v.BindEnv("s3_secret_key", "DATAPROF_S3_SECRET_KEY", "AWS_SECRET_KEY")
	_ = v.BindEnv("s3_region", "DATAPROF_S3_REGION", "AWS_REGION")
	_ = v.BindEnv("s3_bucket", "DATAPROF_S3_BUCKET", "S3_BUCKET_NAME")
	_ = v.BindEnv("api_key", "DATAPROF_API_KEY", "OPENROUTER_API_KEY")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.StorageKind == "fs" && c.StorageDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.StorageDir = filepath.Join(dir, "artifacts")
	}
	return &c, nil
}

// isNotFound reports whether err means "no config file"; an explicit path
// that does not exist counts too.
func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// setters maps settable keys to a parse-and-assign function.
var setters = map[string]func(c *Global, val string) error{
	"log_level":  func(c *Global, v string) error { c.LogLevel = v; return nil },
	"log_format": func(c *Global, v string) error { return oneOf(&c.LogFormat, v, "text", "json") },
	"max_rows":   func(c *Global, v string) error { return nonNegInt(&c.MaxRows, v) },
	"storage_kind": func(c *Global, v string) error {
		return oneOf(&c.StorageKind, v, "", "fs", "s3", "sqlite", "postgres")
	},
	"storage_dir":     func(c *Global, v string) error { c.StorageDir = v; return nil },
	"storage_dsn":     func(c *Global, v string) error { c.StorageDSN = v; return nil },
	"s3_bucket":       func(c *Global, v string) error { c.S3Bucket = v; return nil },
	"s3_region":       func(c *Global, v string) error { c.S3Region = v; return nil },
	"s3_access_key":   func(c *Global, v string) error { c.S3AccessKey = v; return nil },
	"s3_secret_key":   func(c *Global, v string) error { c.S3SecretKey = v; return nil },
	"s3_endpoint":     func(c *Global, v string) error { c.S3Endpoint = v; return nil },
	"server_addr":     func(c *Global, v string) error { c.ServerAddr = v; return nil },
	"max_upload_mb":   func(c *Global, v string) error { return nonNegInt(&c.MaxUploadMB, v) },
	"allowed_origins": func(c *Global, v string) error { c.AllowedOrigins = splitCSV(v); return nil },
	"api_key":         func(c *Global, v string) error { c.APIKey = v; return nil },
	"ai_provider": func(c *Global, v string) error {
		return oneOf(&c.AIProvider, strings.ToLower(v), "openrouter", "ollama")
	},
	"ai_model":      func(c *Global, v string) error { c.AIModel = v; return nil },
	"max_tokens":    func(c *Global, v string) error { return nonNegInt(&c.MaxTokens, v) },
	"prompt_tokens": func(c *Global, v string) error { return nonNegInt(&c.PromptTokens, v) },
	"temperature": func(c *Global, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %v", v)
		}
		c.Temperature = f
		return nil
	},
	"ollama_host":         func(c *Global, v string) error { c.OllamaHost = v; return nil },
	"http_timeout_sec":    func(c *Global, v string) error { return nonNegInt(&c.HTTPTimeoutSec, v) },
	"retry_max_attempts":  func(c *Global, v string) error { return nonNegInt(&c.RetryMaxAttempts, v) },
	"retry_base_delay_ms": func(c *Global, v string) error { return nonNegInt(&c.RetryBaseDelayMs, v) },
	"retry_max_delay_ms":  func(c *Global, v string) error { return nonNegInt(&c.RetryMaxDelayMs, v) },
	"metrics_backend": func(c *Global, v string) error {
		return oneOf(&c.MetricsBackend, v, "none", "datadog")
	},
	"metrics_tags":      func(c *Global, v string) error { c.MetricsTags = v; return nil },
	"metrics_flush_sec": func(c *Global, v string) error { return nonNegInt(&c.MetricsFlushSec, v) },
}

// Set assigns a single key from its string form.
func (c *Global) Set(key, val string) error {
	f, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	return f(c, val)
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(setters))
	for k := range setters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func oneOf(dst *string, val string, allowed ...string) error {
	for _, a := range allowed {
		if val == a {
			*dst = val
			return nil
		}
	}
	return fmt.Errorf("invalid value %q (allowed: %s)", val, strings.Join(allowed, ", "))
}

func nonNegInt(dst *int, val string) error {
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return fmt.Errorf("invalid non-negative int: %v", val)
	}
	*dst = i
	return nil
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
