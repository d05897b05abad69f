package adapter

import (
	"context"
	"fmt"

	"github.com/smacker/go-tree-sitter/c"

	m "codesift.dev/pkg/codesift/internal/model"
)

// pseudoSymbolQuery captures the symbols worth anonymizing in decompiler
// pseudo code: defined function names and the callees they reference.
const pseudoSymbolQuery = `
	(function_definition
		declarator: (function_declarator
			declarator: (identifier) @function.symbol))
	(call_expression
		function: (identifier) @function.symbol)
`

// PseudoCodeSymbols scans decompiler pseudo code and returns the function
// symbols it defines or calls, in first-appearance order. Pseudo code is
// C-like regardless of the binary's source language, so the C grammar
// applies.
func PseudoCodeSymbols(ctx context.Context, definition string) ([]string, error) {
	symbols, err := collectCaptures(ctx, []byte(definition), c.GetLanguage(), pseudoSymbolQuery)
	if err != nil {
		return nil, fmt.Errorf("scan pseudo code: %w", err)
	}

	return symbols, nil
}

// NewStripper returns a Stripper that anonymizes every function symbol
// found in a record's pseudo code.
func NewStripper(ctx context.Context) m.Stripper {
	return func(fn m.DecompiledFunction) (m.DecompiledFunction, error) {
		symbols, err := PseudoCodeSymbols(ctx, fn.Definition)
		if err != nil {
			return m.DecompiledFunction{}, err
		}

		return fn.Strip(symbols), nil
	}
}
