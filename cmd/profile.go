package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataprof/internal/ai"
	"github.com/KaramelBytes/dataprof/internal/pipeline"
)

var (
	profFix         bool
	profFormat      string
	profOutput      string
	profStore       bool
	profStorageKind string
	profMetadata    bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <file.csv>",
	Short: "Infer column types and compute per-column statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := checkFormat(profFormat, formatJSON, formatYAML, formatMarkdown)
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
		p, col, err := buildPipeline(ctx, profStore, profStorageKind)
		if err != nil {
			return err
		}
		defer col.Close()

		name := filepath.Base(path)
		res, err := p.Run(ctx, f, pipeline.Options{
			Name:     name,
			Fix:      profFix,
			Metadata: profMetadata,
			Persist:  profStore,
		})
		if err != nil {
			if h := ai.Hint(err); h != "" {
				return fmt.Errorf("%w (hint: %s)", err, h)
			}
			return err
		}

		var out []byte
		switch {
		case format == formatMarkdown:
			md := res.Profile.Markdown(name)
			if res.Metadata != nil {
				md += "\n" + metadataMarkdown(res.Metadata)
			}
			out = []byte(md)
		case res.Metadata != nil:
			out, err = encode(struct {
				Profile  any `json:"profile"`
				Metadata any `json:"metadata"`
			}{res.Profile, res.Metadata}, format)
		default:
			out, err = encode(res.Profile, format)
		}
		if err != nil {
			return err
		}
		if err := emit(cmd.OutOrStdout(), profOutput, out); err != nil {
			return err
		}
		if profOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote profile to %s\n", profOutput)
		}
		if res.Stored {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Stored artifacts as dataset %s\n", res.DatasetID)
		}
		return nil
	},
}

func metadataMarkdown(m *ai.Metadata) string {
	var b strings.Builder
	b.WriteString("[METADATA]\n")
	if m.Title != "" {
		b.WriteString(fmt.Sprintf("Title: %s\n", m.Title))
	}
	if m.Description != "" {
		b.WriteString(fmt.Sprintf("Description: %s\n", m.Description))
	}
	if len(m.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(m.Tags, ", ")))
	}
	cols := make([]string, 0, len(m.Columns))
	for c := range m.Columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		b.WriteString(fmt.Sprintf("- %s: %s\n", c, m.Columns[c]))
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVar(&profFix, "fix", false, "profile the cleaned table (rows with missing values and duplicates dropped)")
	profileCmd.Flags().StringVar(&profFormat, "format", formatJSON, "output format: json|yaml|markdown")
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().BoolVar(&profStore, "store", false, "persist original, cleaned and profile artifacts")
	profileCmd.Flags().StringVar(&profStorageKind, "storage-kind", "", "storage backend for --store: fs|s3|sqlite|postgres (overrides config)")
	profileCmd.Flags().BoolVar(&profMetadata, "metadata", false, "ask the configured AI model to describe the dataset")
}
