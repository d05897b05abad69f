package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 120 * time.Millisecond

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	countStyle = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// TUI implements UI using Bubble Tea for a live inline progress display.
// One bar per observed batch; batches with an unknown size show a spinner
// and running counts instead of a bar.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	views   []ProgressView
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Observe registers batch trackers; call before Start.
func (p *TUI) Observe(views ...ProgressView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.views = append(p.views, views...)
}

// Start launches the live display in the background.
func (p *TUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.program != nil {
		return nil
	}

	model := newBatchModel(p.views)
	p.program = tea.NewProgram(model, tea.WithOutput(p.output))
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		_, _ = p.program.Run()
	}()

	return nil
}

// Close stops the live display and waits for the final frame.
func (p *TUI) Close(ctx context.Context) {
	p.mu.Lock()
	program, done := p.program, p.done
	p.program = nil
	p.mu.Unlock()

	if program == nil {
		return
	}

	program.Quit()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// DisplaySummary prints the final counts of every observed batch.
func (p *TUI) DisplaySummary(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	views := make([]ProgressView, len(p.views))
	copy(views, p.views)
	p.mu.Unlock()

	if len(views) == 0 {
		return
	}

	_, _ = fmt.Fprintf(p.output, "\n%s", renderSummaryTable(views))
}

// DisplayMessage prints a standalone line without tearing the display.
func (p *TUI) DisplayMessage(ctx context.Context, format string, args ...any) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	program := p.program
	p.mu.Unlock()

	if program != nil {
		program.Println(fmt.Sprintf(format, args...))

		return
	}

	_, _ = fmt.Fprintf(p.output, format+"\n", args...)
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// batchModel renders one progress line per observed batch.
type batchModel struct {
	views []ProgressView
	bars  []progress.Model
	spin  spinner.Model
	width int
}

func newBatchModel(views []ProgressView) batchModel {
	bars := make([]progress.Model, len(views))
	for i := range bars {
		bars[i] = progress.New(progress.WithDefaultGradient())
	}

	return batchModel{
		views: views,
		bars:  bars,
		spin:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (bm batchModel) Init() tea.Cmd {
	return tea.Batch(bm.spin.Tick, refresh())
}

func (bm batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		bm.width = msg.Width
		for i := range bm.bars {
			bm.bars[i].Width = barWidth(msg.Width)
		}

		return bm, nil

	case refreshMsg:
		return bm, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		bm.spin, cmd = bm.spin.Update(msg)

		return bm, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// Drops the display only; the pipeline keeps running.
			return bm, tea.Quit
		}

		return bm, nil
	}

	return bm, nil
}

func barWidth(total int) int {
	width := total - 40
	if width < 10 {
		width = 10
	}
	if width > 60 {
		width = 60
	}

	return width
}

func (bm batchModel) View() string {
	var b strings.Builder

	for i, view := range bm.views {
		completed := view.Completed()
		failed := view.Errors()
		total := view.Total()

		b.WriteString(labelStyle.Render(view.Label()))
		b.WriteString("\n")

		if total >= 0 {
			percent := 1.0
			if total > 0 {
				percent = float64(completed+failed) / float64(total)
			}
			b.WriteString(bm.bars[i].ViewAs(percent))
			b.WriteString(countStyle.Render(fmt.Sprintf(" %d/%d", completed+failed, total)))
		} else {
			b.WriteString(bm.spin.View())
			b.WriteString(countStyle.Render(fmt.Sprintf(" %d done", completed)))
		}

		if failed > 0 {
			b.WriteString(errStyle.Render(fmt.Sprintf("  %d error(s)", failed)))
		}

		b.WriteString("\n")
	}

	return b.String()
}
