package adapter

import (
	"context"
	"fmt"

	"github.com/smacker/go-tree-sitter/c"

	m "codesift.dev/pkg/codesift/internal/model"
)

// cFunctionQuery captures every function definition together with the
// identifier inside its declarator. Pointer-returning functions nest the
// declarator one level deeper, hence the second alternative.
const cFunctionQuery = `
	(function_definition
		declarator: (function_declarator
			declarator: (identifier) @function.name)) @function.definition
	(function_definition
		declarator: (pointer_declarator
			declarator: (function_declarator
				declarator: (identifier) @function.name))) @function.definition
`

// CExtractor extracts function definitions from C sources.
type CExtractor struct {
	fs SourceFSAdapter
}

// NewCExtractor creates a C extractor reading files through fs.
func NewCExtractor(fs SourceFSAdapter) *CExtractor {
	return &CExtractor{fs: fs}
}

// Language returns the registry tag.
func (e *CExtractor) Language() string {
	return "C"
}

// Extensions returns the file extensions this extractor claims.
func (e *CExtractor) Extensions() []string {
	return []string{".c"}
}

// ExtractableFiles lists every C source file under repo.
func (e *CExtractor) ExtractableFiles(repo m.Path) ([]m.Path, error) {
	return e.fs.FilesWithExtensions(repo, e.Extensions())
}

// Extract parses path and returns one record per function definition.
func (e *CExtractor) Extract(ctx context.Context, path m.Path) ([]m.SourceFunction, error) {
	content, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	matches, err := matchFunctions(ctx, content, c.GetLanguage(), cFunctionQuery)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	functions := make([]m.SourceFunction, 0, len(matches))
	for _, match := range matches {
		fn, err := m.NewSourceFunction(path, e.Language(), match.body, match.name, match.startByte, match.endByte, "", nil)
		if err != nil {
			return nil, fmt.Errorf("record %s in %s: %w", match.name, path, err)
		}
		functions = append(functions, fn)
	}

	return functions, nil
}
