// Package model defines the data structures for dataset curation.
package model

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Path represents a file system path.
type Path string

// Base returns the last element of the path.
func (p Path) Base() string {
	return filepath.Base(string(p))
}

// UID identifies a function record within a run. It is derived
// deterministically from the owning file and the function name, so
// re-extracting unchanged code yields the same UID.
func UID(path Path, className, name string) string {
	qualifier := ""
	if className != "" {
		qualifier = className + "."
	}

	return fmt.Sprintf("%s::%s%s", path.Base(), qualifier, name)
}

// reservedMetadataKeys are the serialized field names of SourceFunction.
// Metadata keys must not shadow them.
var reservedMetadataKeys = map[string]struct{}{
	"uid":        {},
	"path":       {},
	"language":   {},
	"definition": {},
	"name":       {},
	"start_byte": {},
	"end_byte":   {},
	"class_name": {},
	"metadata":   {},
}

// SourceFunction is one function definition extracted from a source file.
type SourceFunction struct {
	UID        string         `json:"uid"`
	Path       Path           `json:"path"`
	Language   string         `json:"language"`
	Definition string         `json:"definition"`
	Name       string         `json:"name"`
	StartByte  int            `json:"start_byte"`
	EndByte    int            `json:"end_byte"`
	ClassName  string         `json:"class_name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewSourceFunction builds a validated SourceFunction. StartByte/EndByte is
// the half-open byte range of the definition within the owning file.
func NewSourceFunction(path Path, language, definition, name string, startByte, endByte int, className string, metadata map[string]any) (SourceFunction, error) {
	if startByte < 0 {
		return SourceFunction{}, fmt.Errorf("start byte must be a non-negative integer, got %d", startByte)
	}
	if startByte >= endByte {
		return SourceFunction{}, fmt.Errorf("start byte %d must be less than end byte %d", startByte, endByte)
	}
	for key := range metadata {
		if _, reserved := reservedMetadataKeys[key]; reserved {
			return SourceFunction{}, fmt.Errorf("metadata key %q collides with a function field", key)
		}
	}

	return SourceFunction{
		UID:        UID(path, className, name),
		Path:       path,
		Language:   language,
		Definition: definition,
		Name:       name,
		StartByte:  startByte,
		EndByte:    endByte,
		ClassName:  className,
		Metadata:   metadata,
	}, nil
}

// WithDefinition returns a copy of the function carrying a replacement
// definition. The copy shares no metadata map with the original.
func (f SourceFunction) WithDefinition(definition string) SourceFunction {
	clone := f
	clone.Definition = definition
	clone.Metadata = cloneMetadata(f.Metadata)

	return clone
}

// WithMetadata returns a copy of the function with the given entries merged
// into its metadata. Reserved keys are rejected.
func (f SourceFunction) WithMetadata(entries map[string]any) (SourceFunction, error) {
	for key := range entries {
		if _, reserved := reservedMetadataKeys[key]; reserved {
			return SourceFunction{}, fmt.Errorf("metadata key %q collides with a function field", key)
		}
	}

	clone := f
	clone.Metadata = cloneMetadata(f.Metadata)
	if clone.Metadata == nil {
		clone.Metadata = make(map[string]any, len(entries))
	}
	for key, value := range entries {
		clone.Metadata[key] = value
	}

	return clone, nil
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}

	clone := make(map[string]any, len(metadata))
	for key, value := range metadata {
		clone[key] = value
	}

	return clone
}

// DecompiledFunction is one function recovered from a compiled binary.
type DecompiledFunction struct {
	UID          string `json:"uid"`
	Path         Path   `json:"path"`
	Definition   string `json:"definition"`
	Name         string `json:"name"`
	Assembly     string `json:"assembly"`
	Architecture string `json:"architecture"`
}

// NewDecompiledFunction builds a DecompiledFunction with a derived UID.
func NewDecompiledFunction(path Path, definition, name, assembly, architecture string) DecompiledFunction {
	return DecompiledFunction{
		UID:          UID(path, "", name),
		Path:         path,
		Definition:   definition,
		Name:         name,
		Assembly:     assembly,
		Architecture: architecture,
	}
}

// Strip returns a copy of the function in which every occurrence of each
// given symbol is replaced by an anonymized placeholder, consistently
// across definition and assembly. The symbol-to-placeholder mapping is
// built once per call, so the same symbol always maps to the same
// placeholder within the returned record.
func (f DecompiledFunction) Strip(symbols []string) DecompiledFunction {
	mapping := make(map[string]string, len(symbols))
	definition := f.Definition
	assembly := f.Assembly
	name := f.Name

	for _, symbol := range symbols {
		if symbol == "" {
			continue
		}
		if _, seen := mapping[symbol]; seen {
			continue
		}
		placeholder := newPlaceholder()
		mapping[symbol] = placeholder
		definition = strings.ReplaceAll(definition, symbol, placeholder)
		assembly = strings.ReplaceAll(assembly, symbol, placeholder)
		if name == symbol {
			name = placeholder
		}
	}

	clone := f
	clone.Definition = definition
	clone.Assembly = assembly
	clone.Name = name

	return clone
}

// newPlaceholder yields an anonymized symbol name. The first UUID group
// keeps collisions across placeholders negligible while staying short
// enough to read in assembly listings.
func newPlaceholder() string {
	return "sub_" + uuid.NewString()[:8]
}
