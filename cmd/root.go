package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprof/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataprof/internal/config"
	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/logging"
	"github.com/KaramelBytes/dataprof/internal/metrics"
	"github.com/KaramelBytes/dataprof/internal/metrics/datadog"
	"github.com/KaramelBytes/dataprof/internal/pipeline"
	"github.com/KaramelBytes/dataprof/internal/storage"

	// storage backends register themselves
	_ "github.com/KaramelBytes/dataprof/internal/storage/fsstore"
	_ "github.com/KaramelBytes/dataprof/internal/storage/pgstore"
	_ "github.com/KaramelBytes/dataprof/internal/storage/s3store"
	_ "github.com/KaramelBytes/dataprof/internal/storage/sqlitestore"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration and logger
	cfg    *cfgpkg.Global
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dataprof",
	Short: "dataprof: profile CSV datasets and check their quality",
	Long: `dataprof infers column types, computes per-column statistics and reports
missing values and duplicate rows for CSV files. It runs as a CLI or as an
HTTP service, and can store artifacts and ask an AI model to describe a dataset.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return loadConfig() }
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dataprof/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text|json (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	l, err := logging.New(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// openStore builds and initializes the configured artifact store. kind
// overrides cfg.StorageKind when non-empty; an empty result means no store.
func openStore(ctx context.Context, kind string) (storage.Store, error) {
	if kind == "" {
		kind = cfg.StorageKind
	}
	if kind == "" {
		return nil, nil
	}
	dir := cfg.StorageDir
	if kind == "fs" && dir == "" {
		d, err := cfgpkg.Dir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "artifacts")
	}
	st, err := storage.New(ctx, storage.Config{
		Kind: kind,
		Dir:  dir,
		DSN:  cfg.StorageDSN,
		S3: storage.S3Config{
			Bucket:         cfg.S3Bucket,
			Region:         cfg.S3Region,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Endpoint:       cfg.S3Endpoint,
			AllowedOrigins: cfg.AllowedOrigins,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init %s storage: %w", kind, err)
	}
	logger.WithField("kind", kind).Debug("artifact storage ready")
	return st, nil
}

func runtimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      cfg.APIKey,
		Host:        cfg.OllamaHost,
	}
}

func openMetrics(ctx context.Context) (metrics.Backend, error) {
	switch cfg.MetricsBackend {
	case "", "none":
		return metrics.Nop{}, nil
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			Tags:       datadog.ParseTagsCSV(cfg.MetricsTags),
			FlushEvery: time.Duration(cfg.MetricsFlushSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported metrics_backend: %s", cfg.MetricsBackend)
}

// collaborators holds what a pipeline needs and how to release it.
type collaborators struct {
	store   storage.Store
	metrics metrics.Backend
}

func (c *collaborators) Close() {
	if c.metrics != nil {
		if err := c.metrics.Close(); err != nil {
			logger.WithError(err).Warn("metrics close")
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			logger.WithError(err).Warn("storage close")
		}
	}
}

// buildPipeline wires store, runtime and metrics from the loaded config.
// withStore selects whether artifact storage is opened at all.
func buildPipeline(ctx context.Context, withStore bool, storeKind string) (*pipeline.Pipeline, *collaborators, error) {
	col := &collaborators{}
	if withStore {
		st, err := openStore(ctx, storeKind)
		if err != nil {
			return nil, nil, err
		}
		if st == nil {
			return nil, nil, fmt.Errorf("no storage configured; set storage_kind or pass a kind to --store")
		}
		col.store = st
	}
	m, err := openMetrics(ctx)
	if err != nil {
		col.Close()
		return nil, nil, err
	}
	col.metrics = m

	rt, err := ai.NewRuntime(cfg.AIProvider, runtimeConfig())
	if err != nil {
		col.Close()
		return nil, nil, err
	}
	p := pipeline.New(pipeline.Config{
		Store:   col.store,
		Runtime: rt,
		Model:   cfg.AIModel,
		AIOpts: ai.MetadataOptions{
			PromptTokens: cfg.PromptTokens,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
		},
		Metrics:  m,
		Logger:   logger,
		LoadOpts: dataset.LoadOptions{Delimiter: ',', MaxRows: cfg.MaxRows},
	})
	return p, col, nil
}
