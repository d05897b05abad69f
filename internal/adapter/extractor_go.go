package adapter

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	m "codesift.dev/pkg/codesift/internal/model"
)

// GoExtractor extracts function and method definitions from Go sources.
// Unlike the tree-sitter extractors it parses with go/parser, which also
// yields the receiver type used as the record's class name.
type GoExtractor struct {
	fs SourceFSAdapter
}

// NewGoExtractor creates a Go extractor reading files through fs.
func NewGoExtractor(fs SourceFSAdapter) *GoExtractor {
	return &GoExtractor{fs: fs}
}

// Language returns the registry tag.
func (e *GoExtractor) Language() string {
	return "Go"
}

// Extensions returns the file extensions this extractor claims.
func (e *GoExtractor) Extensions() []string {
	return []string{".go"}
}

// ExtractableFiles lists every Go source file under repo.
func (e *GoExtractor) ExtractableFiles(repo m.Path) ([]m.Path, error) {
	return e.fs.FilesWithExtensions(repo, e.Extensions())
}

// Extract parses path and returns one record per function or method
// definition. Bodyless declarations (assembly stubs) are skipped.
func (e *GoExtractor) Extract(ctx context.Context, path m.Path) ([]m.SourceFunction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	fileSet := token.NewFileSet()
	file, err := parser.ParseFile(fileSet, string(path), content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var functions []m.SourceFunction
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}

		start := fileSet.Position(fn.Pos()).Offset
		end := fileSet.Position(fn.End()).Offset

		record, err := m.NewSourceFunction(path, e.Language(), string(content[start:end]), fn.Name.Name, start, end, receiverName(fn), nil)
		if err != nil {
			return nil, fmt.Errorf("record %s in %s: %w", fn.Name.Name, path, err)
		}
		functions = append(functions, record)
	}

	return functions, nil
}

// receiverName returns the bare type name a method is declared on, or the
// empty string for plain functions.
func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}

	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	case *ast.IndexListExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	}

	return ""
}
