package adapter

import (
	"context"
	"fmt"

	"github.com/smacker/go-tree-sitter/javascript"

	m "codesift.dev/pkg/codesift/internal/model"
)

// jsFunctionQuery captures the ways a named function can appear in
// JavaScript. Methods carry a class.name capture so the enclosing class
// qualifies the record.
const jsFunctionQuery = `
	;; function declarations
	(function_declaration
		name: (identifier) @function.name) @function.definition

	;; function expressions bound to a name
	(variable_declarator
		name: (identifier) @function.name
		value: (function_expression)) @function.definition

	;; arrow functions bound to a name
	(variable_declarator
		name: (identifier) @function.name
		value: (arrow_function)) @function.definition

	;; methods in class declarations
	(class_declaration
		name: (identifier) @class.name
		body: (class_body
			(method_definition
				name: (property_identifier) @function.name) @function.definition))

	;; methods in class expressions
	(variable_declarator
		name: (identifier) @class.name
		value: (class
			body: (class_body
				(method_definition
					name: (property_identifier) @function.name) @function.definition)))
`

// JavaScriptExtractor extracts functions and class methods from
// JavaScript sources.
type JavaScriptExtractor struct {
	fs SourceFSAdapter
}

// NewJavaScriptExtractor creates a JavaScript extractor reading files
// through fs.
func NewJavaScriptExtractor(fs SourceFSAdapter) *JavaScriptExtractor {
	return &JavaScriptExtractor{fs: fs}
}

// Language returns the registry tag.
func (e *JavaScriptExtractor) Language() string {
	return "JavaScript"
}

// Extensions returns the file extensions this extractor claims.
func (e *JavaScriptExtractor) Extensions() []string {
	return []string{".js", ".cjs", ".mjs"}
}

// ExtractableFiles lists every JavaScript source file under repo.
func (e *JavaScriptExtractor) ExtractableFiles(repo m.Path) ([]m.Path, error) {
	return e.fs.FilesWithExtensions(repo, e.Extensions())
}

// Extract parses path and returns one record per function or method.
func (e *JavaScriptExtractor) Extract(ctx context.Context, path m.Path) ([]m.SourceFunction, error) {
	content, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	matches, err := matchFunctions(ctx, content, javascript.GetLanguage(), jsFunctionQuery)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	functions := make([]m.SourceFunction, 0, len(matches))
	for _, match := range matches {
		fn, err := m.NewSourceFunction(path, e.Language(), match.body, match.name, match.startByte, match.endByte, match.className, nil)
		if err != nil {
			return nil, fmt.Errorf("record %s in %s: %w", match.name, path, err)
		}
		functions = append(functions, fn)
	}

	return functions, nil
}
