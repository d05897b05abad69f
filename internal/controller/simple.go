package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
)

// SimpleUI implements UI using cobra Command's output. Suited to logs and
// non-terminal runs: one line when a batch starts, a table at the end.
type SimpleUI struct {
	cmd *cobra.Command

	mu    sync.Mutex
	views []ProgressView
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Observe registers batch trackers for the summary.
func (s *SimpleUI) Observe(views ...ProgressView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.views = append(s.views, views...)
}

// Start announces every observed batch.
func (s *SimpleUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, view := range s.views {
		if total := view.Total(); total >= 0 {
			s.printf("%s: %d item(s)\n", view.Label(), total)
		} else {
			s.printf("%s\n", view.Label())
		}
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplaySummary prints the final counts of every observed batch.
func (s *SimpleUI) DisplaySummary(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	views := make([]ProgressView, len(s.views))
	copy(views, s.views)
	s.mu.Unlock()

	if len(views) == 0 {
		return
	}

	s.printf("\n%s", renderSummaryTable(views))
}

// DisplayMessage prints a standalone line.
func (s *SimpleUI) DisplayMessage(ctx context.Context, format string, args ...any) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf(format+"\n", args...)
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
