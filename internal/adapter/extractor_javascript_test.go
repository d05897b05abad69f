package adapter

import (
	"context"
	"path/filepath"
	"testing"

	m "codesift.dev/pkg/codesift/internal/model"
)

const jsFixture = `function plain(a, b) {
	return a + b;
}

const bound = function (x) {
	return x * 2;
};

const arrow = (y) => y - 1;

class Greeter {
	greet(name) {
		return "hi " + name;
	}
}

const Volume = class {
	up(step) {
		return step + 1;
	}
};
`

func TestJavaScriptExtractor_Extract(t *testing.T) {
	extractor := NewJavaScriptExtractor(NewLocalSourceFSAdapter())

	root := t.TempDir()
	path := filepath.Join(root, "app.js")
	writeTestFile(t, path, jsFixture)

	functions, err := extractor.Extract(context.Background(), m.Path(path))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	byUID := make(map[string]m.SourceFunction, len(functions))
	for _, fn := range functions {
		byUID[fn.UID] = fn
	}

	for _, uid := range []string{
		"app.js::plain",
		"app.js::bound",
		"app.js::arrow",
		"app.js::Greeter.greet",
		"app.js::Volume.up",
	} {
		if _, ok := byUID[uid]; !ok {
			t.Fatalf("Extract() missing %s (got %v)", uid, uids(functions))
		}
	}

	greet := byUID["app.js::Greeter.greet"]
	if greet.ClassName != "Greeter" {
		t.Fatalf("Extract() class name = %q, want Greeter", greet.ClassName)
	}
}

func TestJavaScriptExtractor_Extensions(t *testing.T) {
	extractor := NewJavaScriptExtractor(NewLocalSourceFSAdapter())

	exts := extractor.Extensions()
	if len(exts) != 3 {
		t.Fatalf("Extensions() = %v, want .js .cjs .mjs", exts)
	}
}

func uids(functions []m.SourceFunction) []string {
	ids := make([]string, 0, len(functions))
	for _, fn := range functions {
		ids = append(ids, fn.UID)
	}

	return ids
}
