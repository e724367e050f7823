package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/dataprof/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set dataprof configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "max_rows: %d\n", cfg.MaxRows)
		fmt.Fprintf(out, "storage_kind: %s\n", cfg.StorageKind)
		switch cfg.StorageKind {
		case "fs":
			fmt.Fprintf(out, "storage_dir: %s\n", cfg.StorageDir)
		case "sqlite", "postgres":
			fmt.Fprintf(out, "storage_dsn: %s\n", maskDSN(cfg.StorageDSN))
		case "s3":
			fmt.Fprintf(out, "s3_bucket: %s\n", cfg.S3Bucket)
			fmt.Fprintf(out, "s3_region: %s\n", cfg.S3Region)
			fmt.Fprintf(out, "s3_access_key: %s\n", mask(cfg.S3AccessKey))
			fmt.Fprintf(out, "s3_secret_key: %s\n", mask(cfg.S3SecretKey))
			if cfg.S3Endpoint != "" {
				fmt.Fprintf(out, "s3_endpoint: %s\n", cfg.S3Endpoint)
			}
		}
		fmt.Fprintf(out, "server_addr: %s\n", cfg.ServerAddr)
		fmt.Fprintf(out, "max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Fprintf(out, "allowed_origins: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "ai_provider: %s\n", cfg.AIProvider)
		fmt.Fprintf(out, "ai_model: %s\n", cfg.AIModel)
		if cfg.AIProvider == "ollama" {
			fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		}
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "prompt_tokens: %d\n", cfg.PromptTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "metrics_backend: %s\n", cfg.MetricsBackend)
		if cfg.MetricsTags != "" {
			fmt.Fprintf(out, "metrics_tags: %s\n", cfg.MetricsTags)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk.\n\nKeys: " + strings.Join(cfgpkg.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		return dsn[:scheme+3] + creds[:i] + ":****" + dsn[at:]
	}
	return dsn
}
