package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	m "codesift.dev/pkg/codesift/internal/model"
)

func TestLocalSourceFSAdapter_FilesWithExtensions(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "main.c"), "int main(void) { return 0; }\n")
	writeTestFile(t, filepath.Join(root, "README.md"), "# readme\n")
	writeTestFile(t, filepath.Join(root, "UPPER.C"), "int upper(void) { return 1; }\n")

	nestedDir := filepath.Join(root, "src")
	mustMkdir(t, nestedDir)
	writeTestFile(t, filepath.Join(nestedDir, "util.c"), "int util(void) { return 2; }\n")

	skipped := filepath.Join(root, "vendor")
	mustMkdir(t, skipped)
	writeTestFile(t, filepath.Join(skipped, "dep.c"), "int dep(void) { return 3; }\n")

	files, err := adapter.FilesWithExtensions(m.Path(root), []string{".c"})
	if err != nil {
		t.Fatalf("FilesWithExtensions() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "UPPER.C"),
		filepath.Join(root, "main.c"),
		filepath.Join(nestedDir, "util.c"),
	}

	if len(files) != len(want) {
		t.Fatalf("FilesWithExtensions() = %v, want %v", files, want)
	}

	for i, path := range want {
		if string(files[i]) != path {
			t.Fatalf("FilesWithExtensions()[%d] = %s, want %s (full: %v)", i, files[i], path, files)
		}
	}
}

func TestLocalSourceFSAdapter_StreamFilesWithExtensions(t *testing.T) {
	t.Run("delivers every match and closes", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "one.c"), "int one(void) { return 1; }\n")
		writeTestFile(t, filepath.Join(root, "two.c"), "int two(void) { return 2; }\n")
		writeTestFile(t, filepath.Join(root, "skip.txt"), "nope\n")

		paths, errs := adapter.StreamFilesWithExtensions(context.Background(), m.Path(root), []string{".c"})

		var got []m.Path
		for path := range paths {
			got = append(got, path)
		}

		if err := <-errs; err != nil {
			t.Fatalf("StreamFilesWithExtensions() error = %v", err)
		}

		if len(got) != 2 {
			t.Fatalf("StreamFilesWithExtensions() delivered %d paths, want 2", len(got))
		}
	})

	t.Run("cancellation stops the walk", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		for _, name := range []string{"a.c", "b.c", "c.c", "d.c"} {
			writeTestFile(t, filepath.Join(root, name), "int f(void) { return 0; }\n")
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		paths, _ := adapter.StreamFilesWithExtensions(ctx, m.Path(root), []string{".c"})

		deadline := time.After(5 * time.Second)
		for {
			select {
			case _, open := <-paths:
				if !open {
					return
				}
			case <-deadline:
				t.Fatalf("StreamFilesWithExtensions() did not terminate after cancellation")
			}
		}
	})
}

func TestLocalSourceFSAdapter_IsBinaryFile(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()
	root := t.TempDir()

	text := filepath.Join(root, "plain.c")
	writeTestFile(t, text, "int main(void) { return 0; }\n")

	elf := filepath.Join(root, "tool")
	writeTestBytes(t, elf, []byte{0x7F, 'E', 'L', 'F', 0x00, 0x01, 0x02})

	nulOnly := filepath.Join(root, "nul")
	writeTestBytes(t, nulOnly, []byte("text with a \x00 byte"))

	for _, tc := range []struct {
		path string
		want bool
	}{
		{text, false},
		{elf, true},
		{nulOnly, true},
	} {
		got, err := adapter.IsBinaryFile(m.Path(tc.path))
		if err != nil {
			t.Fatalf("IsBinaryFile(%s) error = %v", tc.path, err)
		}

		if got != tc.want {
			t.Fatalf("IsBinaryFile(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestLocalSourceFSAdapter_ListDir(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "b.bin"), "x")
	writeTestFile(t, filepath.Join(root, "a.bin"), "x")
	mustMkdir(t, filepath.Join(root, "sub"))

	children, err := adapter.ListDir(m.Path(root))
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "a.bin"),
		filepath.Join(root, "b.bin"),
		filepath.Join(root, "sub"),
	}

	if len(children) != len(want) {
		t.Fatalf("ListDir() = %v, want %v", children, want)
	}

	for i, path := range want {
		if string(children[i]) != path {
			t.Fatalf("ListDir()[%d] = %s, want %s", i, children[i], path)
		}
	}
}

func TestLocalSourceFSAdapter_CopyDir(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "main.c"), "int main(void) { return 0; }\n")

	nested := filepath.Join(src, "lib")
	mustMkdir(t, nested)
	writeTestFile(t, filepath.Join(nested, "util.c"), "int util(void) { return 1; }\n")

	gitDir := filepath.Join(src, ".git")
	mustMkdir(t, gitDir)
	writeTestFile(t, filepath.Join(gitDir, "HEAD"), "ref: refs/heads/main\n")

	dst := filepath.Join(t.TempDir(), "copy")
	if err := adapter.CopyDir(m.Path(src), m.Path(dst)); err != nil {
		t.Fatalf("CopyDir() error = %v", err)
	}

	copied, err := adapter.ReadFile(m.Path(filepath.Join(dst, "lib", "util.c")))
	if err != nil {
		t.Fatalf("ReadFile() after copy error = %v", err)
	}

	if len(copied) == 0 {
		t.Fatalf("CopyDir() produced an empty nested file")
	}

	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Fatalf("CopyDir() copied the .git directory")
	}
}

func TestLocalSourceFSAdapter_RelAndJoin(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	rel, err := adapter.RelPath("/repo", "/repo/src/deep/file.c")
	if err != nil {
		t.Fatalf("RelPath() error = %v", err)
	}

	if string(rel) != filepath.Join("src", "deep", "file.c") {
		t.Fatalf("RelPath() = %s, want %s", rel, filepath.Join("src", "deep", "file.c"))
	}

	joined := adapter.JoinPath("/repo", "src", "file.c")
	if string(joined) != filepath.Join("/repo", "src", "file.c") {
		t.Fatalf("JoinPath() = %s, want %s", joined, filepath.Join("/repo", "src", "file.c"))
	}
}

func TestLocalSourceFSAdapter_CreateTempDirAndRemoveAll(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	tmp, err := adapter.CreateTempDir("codesift-test-*")
	if err != nil {
		t.Fatalf("CreateTempDir() error = %v", err)
	}

	info, err := adapter.FileInfo(tmp)
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}

	if !info.IsDir() {
		t.Fatalf("CreateTempDir() did not create a directory")
	}

	if err := adapter.RemoveAll(tmp); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}

	if _, err := os.Stat(string(tmp)); !os.IsNotExist(err) {
		t.Fatalf("RemoveAll() left %s behind", tmp)
	}
}

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()
	writeTestBytes(t, path, []byte(contents))
}

func writeTestBytes(t *testing.T, path string, contents []byte) {
	t.Helper()

	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()

	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to create dir %s: %v", path, err)
	}
}
