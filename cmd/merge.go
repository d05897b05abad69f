package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"codesift.dev/pkg/codesift/internal/adapter"
	m "codesift.dev/pkg/codesift/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge OUT DATASET...",
		Short: "Merge source datasets into one",
		Long: `Merge saved source datasets into a single dataset. Records are keyed by
uid; when the same uid appears in several inputs the record from the last
input wins.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := m.Path(args[0])
			if _, err := adapter.DatasetExtension(out); err != nil {
				return err
			}

			var functions []m.SourceFunction
			for _, input := range args[1:] {
				part, err := datasetStore.LoadSource(m.Path(input))
				if err != nil {
					return err
				}

				slog.Info("loaded dataset", "path", input, "records", len(part))
				functions = append(functions, part...)
			}

			merged := m.NewSourceDataset(functions)
			if err := datasetStore.SaveSource(out, merged); err != nil {
				return err
			}

			cmd.Printf("Merged %d dataset(s) into %s (%d records)\n", len(args)-1, out, merged.Len())

			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
