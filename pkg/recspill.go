// Package pkg is a package that provides utilities for codesift.
package pkg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Lines carrying whole function bodies get long; the scanner buffer has
// to hold the largest single record.
const maxRecordLine = 16 * 1024 * 1024

// RecordSpill is a generic append-only JSON Lines store for records of
// type T. One record per line, in append order.
type RecordSpill[T any] interface {
	Len() uint64
	Path() string
	Append(record T) error
	AppendBatch(records []T) error
	Range(f func(index uint64, record T) error) error
	Close() error
}

type recordSpillImpl[T any] struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	length uint64
}

// Append implements RecordSpill.
func (r *recordSpillImpl[T]) Append(record T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.append(record)
}

func (r *recordSpillImpl[T]) append(record T) error {
	line, err := json.Marshal(record)
	if err != nil {
		slog.Error("failed to encode record", "path", r.path, "index", r.length, "error", err)
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		slog.Error("failed to write record", "path", r.path, "index", r.length, "error", err)
		return fmt.Errorf("failed to write record: %w", err)
	}

	r.length++
	slog.Debug("appended record", "path", r.path, "index", r.length-1)

	return nil
}

// AppendBatch implements RecordSpill.
func (r *recordSpillImpl[T]) AppendBatch(records []T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		if err := r.append(record); err != nil {
			return err
		}
	}

	return nil
}

// Path implements RecordSpill.
func (r *recordSpillImpl[T]) Path() string {
	return r.path
}

// Len implements RecordSpill.
func (r *recordSpillImpl[T]) Len() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.length
}

// Range implements RecordSpill. Pending writes are flushed before the
// file is re-read.
func (r *recordSpillImpl[T]) Range(fn func(index uint64, record T) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Flush(); err != nil {
		slog.Error("failed to flush before range", "path", r.path, "error", err)
		return fmt.Errorf("failed to flush records: %w", err)
	}

	file, err := os.Open(r.path)
	if err != nil {
		slog.Error("failed to open file for range", "path", r.path, "error", err)
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close file", "path", r.path, "error", err)
		}
	}()

	index := uint64(0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			slog.Error("failed to decode record during range", "path", r.path, "index", index, "error", err)
			return fmt.Errorf("failed to decode record at index %d: %w", index, err)
		}

		if err := fn(index, record); err != nil {
			slog.Warn("range callback error", "path", r.path, "index", index, "error", err)
			return err
		}

		index++
	}

	if err := scanner.Err(); err != nil {
		slog.Error("failed to scan records", "path", r.path, "error", err)
		return fmt.Errorf("failed to scan records: %w", err)
	}

	slog.Debug("range completed", "path", r.path, "count", index)

	return nil
}

// Close implements RecordSpill.
func (r *recordSpillImpl[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}

	if err := r.writer.Flush(); err != nil {
		slog.Error("failed to flush records", "path", r.path, "error", err)
		return fmt.Errorf("failed to flush records: %w", err)
	}

	if err := r.file.Close(); err != nil {
		slog.Error("failed to close file", "path", r.path, "error", err)
		return err
	}

	r.file = nil
	slog.Debug("closed recordspill", "path", r.path, "length", r.length)

	return nil
}

// NewRecordSpill creates a RecordSpill writing to path. An existing file
// at path is truncated.
func NewRecordSpill[T any](path string) (RecordSpill[T], error) {
	// #nosec G304 - path is a caller-chosen output location
	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	slog.Debug("created recordspill", "path", path)

	return &recordSpillImpl[T]{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
		length: 0,
	}, nil
}

// NewTempRecordSpill creates a RecordSpill backed by a fresh temporary
// file.
func NewTempRecordSpill[T any]() (RecordSpill[T], error) {
	file, err := os.CreateTemp("", "codesift-spill-*.jsonl")
	if err != nil {
		slog.Error("failed to create temp file", "error", err)
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	slog.Debug("created recordspill", "path", file.Name())

	return &recordSpillImpl[T]{
		path:   file.Name(),
		file:   file,
		writer: bufio.NewWriter(file),
		length: 0,
	}, nil
}

// ReadRecords loads every record from a JSON Lines file, blank lines
// skipped.
func ReadRecords[T any](path string) ([]T, error) {
	// #nosec G304 - path is a caller-chosen input location
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close file", "path", path, "error", err)
		}
	}()

	var records []T

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("failed to decode record at line %d: %w", len(records)+1, err)
		}

		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	return records, nil
}
