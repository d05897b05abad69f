package model

import (
	"errors"
	"strings"
	"testing"
)

func TestCorrelationKey(t *testing.T) {
	tests := []struct {
		uid      string
		expected string
	}{
		{"util.c::parse", "parse"},
		{"account.js::Account.close", "close"},
		{"app.bin::main", "main"},
		{"bare_name", "bare_name"},
	}

	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			if key := CorrelationKey(tt.uid); key != tt.expected {
				t.Errorf("CorrelationKey(%q) = %q, expected %q", tt.uid, key, tt.expected)
			}
		})
	}
}

func TestCorrelate(t *testing.T) {
	t.Run("ambiguous key keeps the whole candidate group", func(t *testing.T) {
		// Two same-named source functions in unrelated files share the key.
		source := NewSourceDataset([]SourceFunction{
			mustSourceFunction(t, "a.c", "init", "void init(void) { a(); }"),
			mustSourceFunction(t, "b.c", "init", "void init(void) { b(); }"),
			mustSourceFunction(t, "a.c", "shutdown", "void shutdown(void) {}"),
		})
		decompiled := []DecompiledFunction{
			NewDecompiledFunction("app.bin", "void init(void) {}", "init", "ret", "x86:LE:64"),
		}

		ds, err := Correlate(source, decompiled, nil)
		if err != nil {
			t.Fatalf("Correlate failed: %v", err)
		}
		if ds.Len() != 1 {
			t.Fatalf("expected 1 entry, got %d", ds.Len())
		}
		entry, ok := ds.Get("app.bin::init")
		if !ok {
			t.Fatal("app.bin::init missing from dataset")
		}
		if entry.Sources.Len() != 2 {
			t.Fatalf("expected 2 candidate sources, got %d", entry.Sources.Len())
		}
		for _, uid := range []string{"a.c::init", "b.c::init"} {
			if _, ok := entry.Sources.Get(uid); !ok {
				t.Errorf("candidate group missing %q", uid)
			}
		}
	})

	t.Run("unmatched decompiled record is dropped without error", func(t *testing.T) {
		source := NewSourceDataset([]SourceFunction{
			mustSourceFunction(t, "a.c", "known", "void known(void) {}"),
		})
		decompiled := []DecompiledFunction{
			NewDecompiledFunction("app.bin", "void mystery(void) {}", "mystery", "ret", "x86:LE:64"),
		}

		ds, err := Correlate(source, decompiled, nil)
		if err != nil {
			t.Fatalf("Correlate failed: %v", err)
		}
		if ds.Len() != 0 {
			t.Errorf("expected unmatched record to be dropped, dataset has %d entries", ds.Len())
		}
	})

	t.Run("output follows the supplied decompiled order", func(t *testing.T) {
		source := NewSourceDataset([]SourceFunction{
			mustSourceFunction(t, "a.c", "one", "void one(void) {}"),
			mustSourceFunction(t, "a.c", "two", "void two(void) {}"),
		})
		decompiled := []DecompiledFunction{
			NewDecompiledFunction("app.bin", "", "two", "ret", "arm"),
			NewDecompiledFunction("app.bin", "", "one", "ret", "arm"),
		}

		ds, err := Correlate(source, decompiled, nil)
		if err != nil {
			t.Fatalf("Correlate failed: %v", err)
		}
		uids := ds.UIDs()
		if len(uids) != 2 || uids[0] != "app.bin::two" || uids[1] != "app.bin::one" {
			t.Errorf("unexpected order: %v", uids)
		}
	})

	t.Run("stripping applies after key lookup", func(t *testing.T) {
		source := NewSourceDataset([]SourceFunction{
			mustSourceFunction(t, "a.c", "target", "void target(void) {}"),
		})
		decompiled := []DecompiledFunction{
			NewDecompiledFunction("app.bin", "void target(void) { helper(); }", "target", "call helper", "x86:LE:64"),
		}

		ds, err := Correlate(source, decompiled, func(fn DecompiledFunction) (DecompiledFunction, error) {
			return fn.Strip([]string{"target", "helper"}), nil
		})
		if err != nil {
			t.Fatalf("Correlate failed: %v", err)
		}
		if ds.Len() != 1 {
			t.Fatalf("stripping must not hide the match, got %d entries", ds.Len())
		}
		entry := ds.Entries()[0]
		if strings.Contains(entry.Decompiled.Definition, "target") {
			t.Errorf("stored definition was not stripped: %s", entry.Decompiled.Definition)
		}
	})

	t.Run("stripper failure aborts correlation", func(t *testing.T) {
		source := NewSourceDataset([]SourceFunction{
			mustSourceFunction(t, "a.c", "f", "void f(void) {}"),
		})
		decompiled := []DecompiledFunction{
			NewDecompiledFunction("app.bin", "", "f", "", "arm"),
		}

		bombed := errors.New("parser exploded")
		_, err := Correlate(source, decompiled, func(DecompiledFunction) (DecompiledFunction, error) {
			return DecompiledFunction{}, bombed
		})
		if !errors.Is(err, bombed) {
			t.Fatalf("expected stripper error to propagate, got %v", err)
		}
	})
}
