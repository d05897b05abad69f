// Package controller provides output adapters for displaying pipeline
// progress and results.
package controller

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ProgressView is the read side of a batch tracker. Implementations must
// be safe to read while workers advance the counters.
type ProgressView interface {
	Label() string
	Completed() int64
	Errors() int64
	Total() int64 // negative when the batch size is unknown
}

// UI defines the interface for displaying pipeline progress.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	// Observe registers batch trackers; call before Start.
	Observe(views ...ProgressView)
	Start(ctx context.Context) error
	Close(ctx context.Context)
	// DisplaySummary prints the final counts of every observed batch.
	DisplaySummary(ctx context.Context)
	DisplayMessage(ctx context.Context, format string, args ...any)
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewUI selects a live terminal display when interactive, plain line
// output otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

func renderSummaryTable(views []ProgressView) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Batch", "Produced", "Errors"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER})

	var produced, failed int64

	for _, view := range views {
		table.Append([]string{
			view.Label(),
			fmt.Sprintf("%d", view.Completed()),
			fmt.Sprintf("%d", view.Errors()),
		})

		produced += view.Completed()
		failed += view.Errors()
	}

	table.SetFooter([]string{
		"Total",
		fmt.Sprintf("%d", produced),
		fmt.Sprintf("%d", failed),
	})

	table.Render()

	return tableBuffer.String()
}
