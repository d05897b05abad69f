package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	m "codesift.dev/pkg/codesift/internal/model"
)

// CheckpointStore persists partial extraction results so a run can resume
// after a crash. Snapshots are keyed by a prefix and the identity of the
// writing process; loading consumes every snapshot under the prefix, from
// this process and any prior crashed one.
type CheckpointStore interface {
	// Save serializes functions to the process-scoped snapshot under
	// prefix, replacing any previous snapshot from this process.
	Save(prefix string, functions []m.SourceFunction) error

	// Load reads and concatenates every snapshot under prefix, deleting
	// each file once read. A second Load in the same run returns empty.
	Load(prefix string) ([]m.SourceFunction, error)
}

// FileCheckpointStore stores snapshots as <prefix>_<pid>.json files in a
// shared directory.
type FileCheckpointStore struct {
	dir string
}

// NewFileCheckpointStore creates a store rooted at dir; an empty dir
// selects the system temporary directory.
func NewFileCheckpointStore(dir string) *FileCheckpointStore {
	if dir == "" {
		dir = os.TempDir()
	}

	return &FileCheckpointStore{dir: dir}
}

// Save writes the snapshot atomically: a rename makes readers see either
// the previous snapshot or the new one, never a torn file.
func (s *FileCheckpointStore) Save(prefix string, functions []m.SourceFunction) error {
	data, err := json.Marshal(functions)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	target := s.snapshotPath(prefix)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("publish checkpoint: %w", err)
	}

	return nil
}

// Load consumes every snapshot under prefix.
func (s *FileCheckpointStore) Load(prefix string) ([]m.SourceFunction, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, prefix+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("discover checkpoints: %w", err)
	}

	var functions []m.SourceFunction

	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", match, err)
		}

		var part []m.SourceFunction
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", match, err)
		}

		functions = append(functions, part...)

		if err := os.Remove(match); err != nil {
			return nil, fmt.Errorf("consume checkpoint %s: %w", match, err)
		}
	}

	return functions, nil
}

func (s *FileCheckpointStore) snapshotPath(prefix string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d.json", prefix, os.Getpid()))
}
