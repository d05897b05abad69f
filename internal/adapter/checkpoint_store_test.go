package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	m "codesift.dev/pkg/codesift/internal/model"
)

func makeFunction(t *testing.T, file, name string) m.SourceFunction {
	t.Helper()

	definition := fmt.Sprintf("int %s(void) { return 0; }", name)

	fn, err := m.NewSourceFunction(m.Path(file), "C", definition, name, 0, len(definition), "", nil)
	if err != nil {
		t.Fatalf("NewSourceFunction() error = %v", err)
	}

	return fn
}

func TestFileCheckpointStore_RoundTrip(t *testing.T) {
	store := NewFileCheckpointStore(t.TempDir())

	saved := []m.SourceFunction{
		makeFunction(t, "alpha.c", "alpha"),
		makeFunction(t, "beta.c", "beta"),
		makeFunction(t, "gamma.c", "gamma"),
	}

	if err := store.Save("codesift_extractor", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("codesift_extractor")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded) != len(saved) {
		t.Fatalf("Load() returned %d records, want %d", len(loaded), len(saved))
	}

	uids := make(map[string]bool, len(loaded))
	for _, fn := range loaded {
		uids[fn.UID] = true
	}

	for _, fn := range saved {
		if !uids[fn.UID] {
			t.Fatalf("Load() missing record %s", fn.UID)
		}
	}

	t.Run("second load returns empty", func(t *testing.T) {
		again, err := store.Load("codesift_extractor")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if len(again) != 0 {
			t.Fatalf("Load() after consume returned %d records, want 0", len(again))
		}
	})
}

func TestFileCheckpointStore_SaveReplacesOwnSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewFileCheckpointStore(dir)

	if err := store.Save("codesift_extractor", []m.SourceFunction{makeFunction(t, "a.c", "first")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("codesift_extractor", []m.SourceFunction{
		makeFunction(t, "a.c", "first"),
		makeFunction(t, "b.c", "second"),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snapshots, err := filepath.Glob(filepath.Join(dir, "codesift_extractor_*.json"))
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}

	if len(snapshots) != 1 {
		t.Fatalf("expected one snapshot per process, found %d", len(snapshots))
	}

	loaded, err := store.Load("codesift_extractor")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(loaded))
	}
}

func TestFileCheckpointStore_LoadMergesCrashedSnapshots(t *testing.T) {
	dir := t.TempDir()
	store := NewFileCheckpointStore(dir)

	if err := store.Save("codesift_extractor", []m.SourceFunction{makeFunction(t, "mine.c", "mine")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A snapshot left behind by a crashed process with another pid.
	stale := filepath.Join(dir, "codesift_extractor_999999.json")
	orphan := makeFunction(t, "orphan.c", "orphan")
	writeTestFile(t, stale, fmt.Sprintf(
		`[{"uid":%q,"path":"orphan.c","language":"C","definition":%q,"name":"orphan","start_byte":0,"end_byte":%d}]`,
		orphan.UID, orphan.Definition, orphan.EndByte))

	loaded, err := store.Load("codesift_extractor")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(loaded))
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("Load() did not consume the crashed snapshot")
	}
}

func TestFileCheckpointStore_LoadIgnoresOtherPrefixes(t *testing.T) {
	store := NewFileCheckpointStore(t.TempDir())

	if err := store.Save("codesift_extractor", []m.SourceFunction{makeFunction(t, "a.c", "kept")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("codesift_other", []m.SourceFunction{makeFunction(t, "b.c", "skipped")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("codesift_extractor")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(loaded) != 1 || loaded[0].Name != "kept" {
		t.Fatalf("Load() = %+v, want only the codesift_extractor snapshot", loaded)
	}
}
