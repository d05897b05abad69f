package adapter

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// functionMatch is one function definition captured by a tree-sitter
// query. Byte offsets are half-open into the parsed content.
type functionMatch struct {
	name      string
	className string
	startByte int
	endByte   int
	body      string
}

// Capture names shared by the per-language queries.
const (
	captureName       = "function.name"
	captureDefinition = "function.definition"
	captureClass      = "class.name"
)

// matchFunctions parses content and runs a query whose matches carry a
// function.definition capture and a function.name capture, optionally a
// class.name capture for methods.
func matchFunctions(ctx context.Context, content []byte, lang *sitter.Language, pattern string) ([]functionMatch, error) {
	root, err := sitter.ParseCtx(ctx, content, lang)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	query, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	var matches []functionMatch

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		var current functionMatch
		for _, capture := range match.Captures {
			switch query.CaptureNameForId(capture.Index) {
			case captureName:
				current.name = capture.Node.Content(content)
			case captureDefinition:
				current.startByte = int(capture.Node.StartByte())
				current.endByte = int(capture.Node.EndByte())
				current.body = capture.Node.Content(content)
			case captureClass:
				current.className = capture.Node.Content(content)
			}
		}

		if current.name == "" || current.body == "" {
			continue
		}
		matches = append(matches, current)
	}

	return matches, nil
}

// collectCaptures runs a query and returns every captured node's text in
// match order, deduplicated.
func collectCaptures(ctx context.Context, content []byte, lang *sitter.Language, pattern string) ([]string, error) {
	root, err := sitter.ParseCtx(ctx, content, lang)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	query, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	seen := make(map[string]struct{})
	var texts []string

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			text := capture.Node.Content(content)
			if text == "" {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			texts = append(texts, text)
		}
	}

	return texts, nil
}
