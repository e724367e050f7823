package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprof/internal/dataset"
	"github.com/KaramelBytes/dataprof/internal/pipeline"
)

var (
	qualFix    bool
	qualOutput string
	qualFormat string
)

var qualityCmd = &cobra.Command{
	Use:   "quality <file.csv>",
	Short: "Report missing values, storage types and duplicate rows",
	Long: `Report missing values, storage types and duplicate rows.

With --fix the cleaned table (rows with any missing value and duplicate rows
removed) is written as CSV to --output, or to stdout when no path is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := checkFormat(qualFormat, formatJSON, formatYAML)
		if err != nil {
			return err
		}
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		ctx := cmd.Context()
		p, col, err := buildPipeline(ctx, false, "")
		if err != nil {
			return err
		}
		defer col.Close()

		res, err := p.Run(ctx, f, pipeline.Options{Name: filepath.Base(path), Fix: qualFix, SkipProfile: true})
		if err != nil {
			return err
		}

		if !qualFix {
			out, err := encode(res.Quality, format)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), qualOutput, out)
		}

		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, res.Cleaned); err != nil {
			return err
		}
		if err := emit(cmd.OutOrStdout(), qualOutput, buf.Bytes()); err != nil {
			return err
		}
		if qualOutput != "" {
			dropped := res.Table.NumRows() - res.Cleaned.NumRows()
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote cleaned data to %s (%d rows, %d dropped)\n", qualOutput, res.Cleaned.NumRows(), dropped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(qualityCmd)
	qualityCmd.Flags().BoolVar(&qualFix, "fix", false, "write the cleaned table instead of the report")
	qualityCmd.Flags().StringVarP(&qualOutput, "output", "o", "", "optional output path")
	qualityCmd.Flags().StringVar(&qualFormat, "format", formatJSON, "report format: json|yaml")
}
