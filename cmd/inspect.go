package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"codesift.dev/pkg/codesift/internal/adapter"
	"codesift.dev/pkg/codesift/internal/controller"
	m "codesift.dev/pkg/codesift/internal/model"
)

// inspectFunctions switches inspect from count tables to the record list.
var inspectFunctions bool

// inspectCmd represents the inspect command.
var inspectCmd = newInspectCmd()

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect DATASET",
		Short: "Summarize a saved dataset",
		Long:  inspectLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			functions, err := datasetStore.LoadSource(m.Path(args[0]))
			if err != nil {
				return err
			}

			if inspectFunctions {
				browser := adapter.NewBrowser(cmd.OutOrStdout(), controller.IsTTY(os.Stdout) && !plainFlag)
				return browser.BrowseSource(functions)
			}

			perLanguage := make(map[string]int)
			perFile := make(map[string]int)
			for _, fn := range functions {
				perLanguage[fn.Language]++
				perFile[string(fn.Path)]++
			}

			renderCountTable(cmd, "Language", perLanguage)
			cmd.Println()
			renderCountTable(cmd, "File", perFile)

			return nil
		},
	}

	cmd.Flags().BoolVar(&inspectFunctions, "functions", false, "list every function record instead of the count tables")

	return cmd
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func renderCountTable(cmd *cobra.Command, header string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{header, "Functions"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	total := 0
	for _, key := range keys {
		table.Append([]string{key, fmt.Sprintf("%d", counts[key])})
		total += counts[key]
	}

	table.SetFooter([]string{"Total", fmt.Sprintf("%d", total)})
	table.Render()
}
