package adapter

import (
	"fmt"
	"io"

	m "codesift.dev/pkg/codesift/internal/model"
)

// Browser renders loaded dataset records for reading. Implementations
// range from plain line output to an interactive pager.
type Browser interface {
	// BrowseSource renders source function records grouped by file.
	BrowseSource(functions []m.SourceFunction) error
}

// NewBrowser returns the interactive pager on request and plain line
// output otherwise.
func NewBrowser(out io.Writer, interactive bool) Browser {
	if interactive {
		return NewTUIBrowser(out)
	}

	return NewSimpleBrowser(out)
}

// recordLine is the one-line rendering of a record shared by the browser
// implementations.
func recordLine(fn m.SourceFunction) string {
	name := fn.Name
	if fn.ClassName != "" {
		name = fn.ClassName + "." + fn.Name
	}

	return fmt.Sprintf("%s  [%s, %d bytes]", name, fn.Language, fn.EndByte-fn.StartByte)
}
