package adapter

import (
	"fmt"
	"io"
	"sort"

	m "codesift.dev/pkg/codesift/internal/model"
)

// SimpleBrowser implements Browser with plain line output.
type SimpleBrowser struct {
	out io.Writer
}

// NewSimpleBrowser creates a browser writing plain lines to out.
func NewSimpleBrowser(out io.Writer) *SimpleBrowser {
	return &SimpleBrowser{out: out}
}

// BrowseSource prints every record grouped by file, then a summary line.
func (b *SimpleBrowser) BrowseSource(functions []m.SourceFunction) error {
	if len(functions) == 0 {
		return b.outPrintf("Dataset is empty.\n")
	}

	perFile := make(map[m.Path][]m.SourceFunction)
	for _, fn := range functions {
		perFile[fn.Path] = append(perFile[fn.Path], fn)
	}

	paths := make([]m.Path, 0, len(perFile))
	for path := range perFile {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	for _, path := range paths {
		group := perFile[path]
		sort.Slice(group, func(i, j int) bool { return group[i].StartByte < group[j].StartByte })

		if err := b.outPrintf("%s: %d function(s)\n", path, len(group)); err != nil {
			return err
		}

		for _, fn := range group {
			if err := b.outPrintf("  %s\n", recordLine(fn)); err != nil {
				return err
			}
		}
	}

	return b.outPrintf("\nTotal: %d function(s) across %d file(s)\n", len(functions), len(paths))
}

// outPrintf writes formatted output to the underlying writer.
func (b *SimpleBrowser) outPrintf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(b.out, format, args...)
	return err
}
