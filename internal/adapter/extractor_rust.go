package adapter

import (
	"context"
	"fmt"

	"github.com/smacker/go-tree-sitter/rust"

	m "codesift.dev/pkg/codesift/internal/model"
)

// rustFunctionQuery captures free functions and impl-block methods. The
// impl type qualifies method records the way a class name does.
const rustFunctionQuery = `
	;; top-level function items
	(function_item
		name: (identifier) @function.name) @function.definition

	;; methods inside impl blocks
	(impl_item
		type: (type_identifier) @class.name
		body: (declaration_list
			(function_item
				name: (identifier) @function.name) @function.definition))
`

// RustExtractor extracts function items from Rust sources.
type RustExtractor struct {
	fs SourceFSAdapter
}

// NewRustExtractor creates a Rust extractor reading files through fs.
func NewRustExtractor(fs SourceFSAdapter) *RustExtractor {
	return &RustExtractor{fs: fs}
}

// Language returns the registry tag.
func (e *RustExtractor) Language() string {
	return "Rust"
}

// Extensions returns the file extensions this extractor claims.
func (e *RustExtractor) Extensions() []string {
	return []string{".rs"}
}

// ExtractableFiles lists every Rust source file under repo.
func (e *RustExtractor) ExtractableFiles(repo m.Path) ([]m.Path, error) {
	return e.fs.FilesWithExtensions(repo, e.Extensions())
}

// Extract parses path and returns one record per function item.
func (e *RustExtractor) Extract(ctx context.Context, path m.Path) ([]m.SourceFunction, error) {
	content, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	matches, err := matchFunctions(ctx, content, rust.GetLanguage(), rustFunctionQuery)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	// A method's function_item also matches the free-function pattern;
	// the impl-qualified record wins.
	seen := make(map[[2]int]int, len(matches))
	functions := make([]m.SourceFunction, 0, len(matches))

	for _, match := range matches {
		fn, err := m.NewSourceFunction(path, e.Language(), match.body, match.name, match.startByte, match.endByte, match.className, nil)
		if err != nil {
			return nil, fmt.Errorf("record %s in %s: %w", match.name, path, err)
		}

		key := [2]int{match.startByte, match.endByte}
		if idx, dup := seen[key]; dup {
			if match.className != "" {
				functions[idx] = fn
			}

			continue
		}

		seen[key] = len(functions)
		functions = append(functions, fn)
	}

	return functions, nil
}
