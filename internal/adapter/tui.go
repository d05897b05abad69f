package adapter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	m "codesift.dev/pkg/codesift/internal/model"
)

const (
	// ANSI codes dimming the per-record details (faint + dark gray).
	grayColor  = "\033[2;90m"
	resetColor = "\033[0m"
)

// TUIBrowser implements Browser with a scrollable Bubble Tea pager.
type TUIBrowser struct {
	output io.Writer
}

// NewTUIBrowser creates a pager writing to output.
func NewTUIBrowser(output io.Writer) *TUIBrowser {
	return &TUIBrowser{output: output}
}

// BrowseSource renders the records as a scrollable list. When everything
// fits on one screen the view is printed directly and no pager starts.
func (b *TUIBrowser) BrowseSource(functions []m.SourceFunction) error {
	model := newBrowseModel(functions)

	// Get initial terminal size
	if f, ok := b.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.height = height
			model.width = width
		}
	}

	if !model.needsPagination() {
		_, err := fmt.Fprint(b.output, model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(b.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

// browseModel is the Bubble Tea model listing dataset records.
type browseModel struct {
	rows     []string
	files    int
	height   int
	width    int
	offset   int // Current scroll offset
	quitting bool
}

func newBrowseModel(functions []m.SourceFunction) browseModel {
	sorted := make([]m.SourceFunction, len(functions))
	copy(sorted, functions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}

		return sorted[i].StartByte < sorted[j].StartByte
	})

	rows := make([]string, 0, len(sorted))
	files := make(map[m.Path]struct{}, len(sorted))
	for _, fn := range sorted {
		files[fn.Path] = struct{}{}
		rows = append(rows, fmt.Sprintf("%s %s[%s, %d bytes]%s", fn.UID, grayColor, fn.Language, fn.EndByte-fn.StartByte, resetColor))
	}

	return browseModel{
		rows:     rows,
		files:    len(files),
		height:   0, // Will be set on first WindowSizeMsg
		width:    0,
		offset:   0,
		quitting: false,
	}
}

func (bm browseModel) Init() tea.Cmd {
	return nil
}

func (bm browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		bm.height = msg.Height
		bm.width = msg.Width

		return bm, nil

	case tea.KeyMsg:
		return bm.handleKeyPress(msg)
	}

	return bm, nil
}

//nolint:cyclop,exhaustive // Key handling requires multiple cases for UI navigation
func (bm browseModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		bm.quitting = true
		return bm, tea.Quit
	default:
		// Handle other key types in the string switch below
	}

	switch msg.String() {
	case "q":
		bm.quitting = true
		return bm, tea.Quit

	case "down", "j":
		bm.offset++

		maxOffset := bm.maxOffset()
		if bm.offset > maxOffset {
			bm.offset = maxOffset
		}

		return bm, nil

	case "up", "k":
		bm.offset--
		if bm.offset < 0 {
			bm.offset = 0
		}

		return bm, nil

	case "g", "home":
		bm.offset = 0

		return bm, nil

	case "G", "end":
		bm.offset = bm.maxOffset()

		return bm, nil

	case "d", "pgdown":
		bm.offset += bm.itemsPerPage()

		maxOffset := bm.maxOffset()
		if bm.offset > maxOffset {
			bm.offset = maxOffset
		}

		return bm, nil

	case "u", "pgup":
		bm.offset -= bm.itemsPerPage()
		if bm.offset < 0 {
			bm.offset = 0
		}

		return bm, nil
	}

	return bm, nil
}

// itemsPerPage calculates how many rows fit on screen after the header,
// summary and footer lines are reserved.
func (bm browseModel) itemsPerPage() int {
	if bm.height == 0 {
		return 10 // Default
	}

	reserved := 12

	available := bm.height - reserved
	if available < 1 {
		return 1
	}

	return available
}

// maxOffset returns the maximum scroll offset.
func (bm browseModel) maxOffset() int {
	perPage := bm.itemsPerPage()
	if perPage <= 0 {
		return 0
	}

	maxOff := len(bm.rows) - perPage
	if maxOff < 0 {
		return 0
	}

	return maxOff
}

// needsPagination returns true if the list is too large to fit on screen.
func (bm browseModel) needsPagination() bool {
	if len(bm.rows) == 0 {
		return false
	}

	return len(bm.rows) > bm.itemsPerPage() && bm.height > 0
}

func (bm browseModel) View() string {
	var b strings.Builder

	bm.renderHeader(&b)

	if len(bm.rows) == 0 {
		b.WriteString("  📭 Dataset is empty\n")
		return b.String()
	}

	bm.renderRecordList(&b)

	return b.String()
}

func (bm browseModel) renderHeader(b *strings.Builder) {
	b.WriteString("╔════════════════════════════════════════════════════════════════╗\n")
	b.WriteString("║                  Codesift - Function Dataset                   ║\n")
	b.WriteString("╚════════════════════════════════════════════════════════════════╝\n\n")
}

func (bm browseModel) renderRecordList(b *strings.Builder) {
	totalRows := len(bm.rows)

	b.WriteString("  Function records:\n\n")

	// Calculate pagination
	itemsPerPage := bm.itemsPerPage()
	needsPagination := totalRows > itemsPerPage && bm.height > 0

	start := bm.offset

	end := start + itemsPerPage
	if end > totalRows {
		end = totalRows
	}

	if start >= totalRows {
		start = totalRows - 1
		if start < 0 {
			start = 0
		}
	}

	displayRows := bm.rows

	if needsPagination {
		displayRows = bm.rows[start:end]
	}

	for _, row := range displayRows {
		fmt.Fprintf(b, "  %s\n", row)
	}

	b.WriteString("\n")
	fmt.Fprintf(b, "  📊 Total: %d function(s) across %d file(s)\n", totalRows, bm.files)

	// Footer with navigation help
	if needsPagination {
		b.WriteString("\n")

		currentPage := (bm.offset / itemsPerPage) + 1
		totalPages := (totalRows + itemsPerPage - 1) / itemsPerPage
		fmt.Fprintf(b, "  Page %d/%d | Showing %d-%d of %d\n",
			currentPage, totalPages, start+1, end, totalRows)
		b.WriteString("  ↑/k: up | ↓/j: down | g: top | G: bottom | q: quit\n")
	}
}
