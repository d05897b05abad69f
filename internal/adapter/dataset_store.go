package adapter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	m "codesift.dev/pkg/codesift/internal/model"
	pkg "codesift.dev/pkg/codesift/pkg"
)

// datasetExtensions are the export formats the store understands.
var datasetExtensions = map[string]struct{}{
	".json":     {},
	".jsonl":    {},
	".csv":      {},
	".tsv":      {},
	".yaml":     {},
	".yml":      {},
	".md":       {},
	".markdown": {},
}

// DatasetExtension validates path's extension and returns it lowercased.
// Callers validate before any expensive work starts.
func DatasetExtension(path m.Path) (string, error) {
	ext := strings.ToLower(filepath.Ext(string(path)))
	if _, ok := datasetExtensions[ext]; !ok {
		supported := make([]string, 0, len(datasetExtensions))
		for known := range datasetExtensions {
			supported = append(supported, known)
		}
		sort.Strings(supported)

		return "", fmt.Errorf("unsupported file extension %q (supported: %s)", filepath.Ext(string(path)), strings.Join(supported, ", "))
	}

	return ext, nil
}

// DatasetStore persists datasets to disk in a format chosen by the target
// file's extension.
type DatasetStore interface {
	SaveSource(path m.Path, dataset *m.SourceDataset) error
	SaveDecompiled(path m.Path, dataset *m.DecompiledDataset) error

	// LoadSource reads a previously saved source dataset. Only the
	// record-oriented formats (.json, .jsonl, .yaml) can be read back.
	LoadSource(path m.Path) ([]m.SourceFunction, error)
}

// FileDatasetStore is the disk-backed DatasetStore.
type FileDatasetStore struct {
	fs SourceFSAdapter
}

// NewFileDatasetStore creates a store writing through fs.
func NewFileDatasetStore(fs SourceFSAdapter) *FileDatasetStore {
	return &FileDatasetStore{fs: fs}
}

// sourceRow is the serialized form of one source function record.
type sourceRow struct {
	UID        string         `json:"uid" yaml:"uid"`
	Path       string         `json:"path" yaml:"path"`
	Language   string         `json:"language" yaml:"language"`
	Name       string         `json:"name" yaml:"name"`
	ClassName  string         `json:"class_name,omitempty" yaml:"class_name,omitempty"`
	StartByte  int            `json:"start_byte" yaml:"start_byte"`
	EndByte    int            `json:"end_byte" yaml:"end_byte"`
	Definition string         `json:"definition" yaml:"definition"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

var sourceColumns = []string{"uid", "path", "language", "name", "class_name", "start_byte", "end_byte", "definition", "metadata"}

func newSourceRow(fn m.SourceFunction) sourceRow {
	return sourceRow{
		UID:        fn.UID,
		Path:       string(fn.Path),
		Language:   fn.Language,
		Name:       fn.Name,
		ClassName:  fn.ClassName,
		StartByte:  fn.StartByte,
		EndByte:    fn.EndByte,
		Definition: fn.Definition,
		Metadata:   fn.Metadata,
	}
}

func (r sourceRow) toFunction() m.SourceFunction {
	return m.SourceFunction{
		UID:        r.UID,
		Path:       m.Path(r.Path),
		Language:   r.Language,
		Name:       r.Name,
		ClassName:  r.ClassName,
		StartByte:  r.StartByte,
		EndByte:    r.EndByte,
		Definition: r.Definition,
		Metadata:   r.Metadata,
	}
}

// decompiledRow is the serialized form of one decompiled record together
// with its correlated source functions.
type decompiledRow struct {
	UID             string      `json:"uid" yaml:"uid"`
	Path            string      `json:"path" yaml:"path"`
	Name            string      `json:"name" yaml:"name"`
	Architecture    string      `json:"architecture" yaml:"architecture"`
	Definition      string      `json:"definition" yaml:"definition"`
	Assembly        string      `json:"assembly" yaml:"assembly"`
	SourceFunctions []sourceRow `json:"source_functions" yaml:"source_functions"`
}

var decompiledColumns = []string{"uid", "path", "name", "architecture", "definition", "assembly", "source_uids", "source_definition"}

func newDecompiledRow(entry m.DecompiledEntry) decompiledRow {
	sources := make([]sourceRow, 0, entry.Sources.Len())
	for _, fn := range entry.Sources.Functions() {
		sources = append(sources, newSourceRow(fn))
	}

	return decompiledRow{
		UID:             entry.Decompiled.UID,
		Path:            string(entry.Decompiled.Path),
		Name:            entry.Decompiled.Name,
		Architecture:    entry.Decompiled.Architecture,
		Definition:      entry.Decompiled.Definition,
		Assembly:        entry.Decompiled.Assembly,
		SourceFunctions: sources,
	}
}

// SaveSource writes the dataset to path in insertion order.
func (s *FileDatasetStore) SaveSource(path m.Path, dataset *m.SourceDataset) error {
	ext, err := DatasetExtension(path)
	if err != nil {
		return err
	}

	rows := make([]sourceRow, 0, dataset.Len())
	for _, fn := range dataset.Functions() {
		rows = append(rows, newSourceRow(fn))
	}

	switch ext {
	case ".json":
		return s.writeJSON(path, rows)
	case ".jsonl":
		return writeRecordLines(path, rows)
	case ".yaml", ".yml":
		return s.writeYAML(path, rows)
	case ".csv", ".tsv":
		cells, err := sourceCells(rows)
		if err != nil {
			return err
		}

		return s.writeDelimited(path, delimiterFor(ext), sourceColumns, cells)
	default:
		cells, err := sourceCells(rows)
		if err != nil {
			return err
		}

		return s.writeMarkdown(path, sourceColumns, cells)
	}
}

// SaveDecompiled writes the dataset to path in insertion order. Tabular
// formats flatten each entry's sources into joined columns; the
// record-oriented formats nest them.
func (s *FileDatasetStore) SaveDecompiled(path m.Path, dataset *m.DecompiledDataset) error {
	ext, err := DatasetExtension(path)
	if err != nil {
		return err
	}

	rows := make([]decompiledRow, 0, dataset.Len())
	for _, entry := range dataset.Entries() {
		rows = append(rows, newDecompiledRow(entry))
	}

	switch ext {
	case ".json":
		return s.writeJSON(path, rows)
	case ".jsonl":
		return writeRecordLines(path, rows)
	case ".yaml", ".yml":
		return s.writeYAML(path, rows)
	case ".csv", ".tsv":
		return s.writeDelimited(path, delimiterFor(ext), decompiledColumns, decompiledCells(rows))
	default:
		return s.writeMarkdown(path, decompiledColumns, decompiledCells(rows))
	}
}

// LoadSource reads a saved source dataset back into records. UIDs are
// taken from the file as-is, not re-derived.
func (s *FileDatasetStore) LoadSource(path m.Path) ([]m.SourceFunction, error) {
	var (
		rows []sourceRow
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(string(path))); ext {
	case ".json":
		raw, readErr := s.fs.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read dataset: %w", readErr)
		}

		err = json.Unmarshal(raw, &rows)
	case ".jsonl":
		rows, err = pkg.ReadRecords[sourceRow](string(path))
	case ".yaml", ".yml":
		raw, readErr := s.fs.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read dataset: %w", readErr)
		}

		err = yaml.Unmarshal(raw, &rows)
	default:
		return nil, fmt.Errorf("unsupported file extension %q for loading (supported: .json, .jsonl, .yaml)", filepath.Ext(string(path)))
	}

	if err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}

	functions := make([]m.SourceFunction, 0, len(rows))
	for _, row := range rows {
		functions = append(functions, row.toFunction())
	}

	return functions, nil
}

func (s *FileDatasetStore) writeJSON(path m.Path, v any) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	return s.fs.WriteFile(path, append(content, '\n'), 0o600)
}

func (s *FileDatasetStore) writeYAML(path m.Path, v any) error {
	content, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	return s.fs.WriteFile(path, content, 0o600)
}

func (s *FileDatasetStore) writeDelimited(path m.Path, delimiter rune, columns []string, cells [][]string) error {
	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)
	writer.Comma = delimiter

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(cells); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	return s.fs.WriteFile(path, buf.Bytes(), 0o600)
}

// mdEscaper keeps cell content from breaking the table layout.
var mdEscaper = strings.NewReplacer("\n", " ", "|", "\\|")

func (s *FileDatasetStore) writeMarkdown(path m.Path, columns []string, cells [][]string) error {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")

	for _, row := range cells {
		escaped := make([]string, len(row))
		for i, cell := range row {
			escaped[i] = mdEscaper.Replace(cell)
		}
		table.Append(escaped)
	}

	table.Render()

	return s.fs.WriteFile(path, buf.Bytes(), 0o600)
}

func writeRecordLines[T any](path m.Path, rows []T) error {
	spill, err := pkg.NewRecordSpill[T](string(path))
	if err != nil {
		return err
	}

	if err := spill.AppendBatch(rows); err != nil {
		_ = spill.Close()

		return err
	}

	return spill.Close()
}

func delimiterFor(ext string) rune {
	if ext == ".tsv" {
		return '\t'
	}

	return ','
}

func sourceCells(rows []sourceRow) ([][]string, error) {
	cells := make([][]string, 0, len(rows))

	for _, row := range rows {
		metadata := ""
		if len(row.Metadata) > 0 {
			encoded, err := json.Marshal(row.Metadata)
			if err != nil {
				return nil, fmt.Errorf("encode metadata for %s: %w", row.UID, err)
			}
			metadata = string(encoded)
		}

		cells = append(cells, []string{
			row.UID, row.Path, row.Language, row.Name, row.ClassName,
			strconv.Itoa(row.StartByte), strconv.Itoa(row.EndByte),
			row.Definition, metadata,
		})
	}

	return cells, nil
}

func decompiledCells(rows []decompiledRow) [][]string {
	cells := make([][]string, 0, len(rows))

	for _, row := range rows {
		uids := make([]string, 0, len(row.SourceFunctions))
		definitions := make([]string, 0, len(row.SourceFunctions))

		for _, src := range row.SourceFunctions {
			uids = append(uids, src.UID)
			definitions = append(definitions, src.Definition)
		}

		cells = append(cells, []string{
			row.UID, row.Path, row.Name, row.Architecture,
			row.Definition, row.Assembly,
			strings.Join(uids, ";"), strings.Join(definitions, "\n\n"),
		})
	}

	return cells
}
