package cmd

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// languagesCmd represents the languages command.
var languagesCmd = newLanguagesCmd()

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List registered extractors and decompilers",
		Long:  "List the source languages codesift can extract and the decompilers it can drive.",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Language", "Extensions"})
			table.SetBorder(false)
			table.SetCenterSeparator("")

			for _, extractor := range extractors.Extractors() {
				table.Append([]string{extractor.Language(), strings.Join(extractor.Extensions(), " ")})
			}

			table.Render()

			cmd.Println()
			cmd.Println("Decompilers:", strings.Join(decompilers.Names(), ", "))
		},
	}
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
