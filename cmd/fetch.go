package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprof/internal/storage"
)

var (
	fetchOutput      string
	fetchStorageKind string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <dataset-id> <artifact>",
	Short: "Print a stored artifact (original.csv, cleaned.csv, profile.json, metadata.json)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := storage.Key(args[0], args[1])
		if err := storage.ValidateKey(key); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, fetchStorageKind)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("no storage configured; set storage_kind or pass --storage-kind")
		}
		defer st.Close()

		obj, err := st.Get(ctx, key)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), fetchOutput, obj.Data)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "optional path to write the artifact")
	fetchCmd.Flags().StringVar(&fetchStorageKind, "storage-kind", "", "storage backend: fs|s3|sqlite|postgres (overrides config)")
}
