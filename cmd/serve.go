package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprof/internal/server"
)

var (
	serveAddr        string
	serveStorageKind string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profiling HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		kind := serveStorageKind
		if kind == "" {
			kind = cfg.StorageKind
		}
		p, col, err := buildPipeline(ctx, kind != "", kind)
		if err != nil {
			return err
		}
		defer col.Close()

		addr := cfg.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := server.New(server.Config{
			Pipeline:       p,
			Store:          col.store,
			Logger:         logger,
			MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
			AllowedOrigins: cfg.AllowedOrigins,
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
	serveCmd.Flags().StringVar(&serveStorageKind, "storage-kind", "", "artifact storage backend: fs|s3|sqlite|postgres (overrides config)")
}
