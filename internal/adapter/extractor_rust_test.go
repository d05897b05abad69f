package adapter

import (
	"context"
	"path/filepath"
	"testing"

	m "codesift.dev/pkg/codesift/internal/model"
)

const rustFixture = `pub fn free_function(x: i32) -> i32 {
	x + 1
}

struct Counter {
	value: i32,
}

impl Counter {
	fn bump(&mut self) {
		self.value += 1;
	}

	fn get(&self) -> i32 {
		self.value
	}
}
`

func TestRustExtractor_Extract(t *testing.T) {
	extractor := NewRustExtractor(NewLocalSourceFSAdapter())

	root := t.TempDir()
	path := filepath.Join(root, "counter.rs")
	writeTestFile(t, path, rustFixture)

	functions, err := extractor.Extract(context.Background(), m.Path(path))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(functions) != 3 {
		t.Fatalf("Extract() found %d records, want 3: %v", len(functions), uids(functions))
	}

	byUID := make(map[string]m.SourceFunction, len(functions))
	for _, fn := range functions {
		byUID[fn.UID] = fn
	}

	if _, ok := byUID["counter.rs::free_function"]; !ok {
		t.Fatalf("Extract() missing free function (got %v)", uids(functions))
	}

	bump, ok := byUID["counter.rs::Counter.bump"]
	if !ok {
		t.Fatalf("Extract() missing impl method (got %v)", uids(functions))
	}

	if bump.ClassName != "Counter" {
		t.Fatalf("Extract() class name = %q, want Counter", bump.ClassName)
	}

	if _, plain := byUID["counter.rs::bump"]; plain {
		t.Fatalf("Extract() kept the unqualified duplicate of an impl method")
	}
}
