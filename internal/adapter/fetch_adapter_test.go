package adapter

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	m "codesift.dev/pkg/codesift/internal/model"
)

func TestRemoteFetchAdapter_DecompressZip(t *testing.T) {
	payload := zipPayload(t, []archiveFile{
		{name: "proj/", dir: true},
		{name: "proj/main.c", content: "int main(void) { return 0; }"},
		{name: "proj/src/util.c", content: "int util(void) { return 1; }"},
	})
	server := serveArchive(t, payload)

	dest := t.TempDir()
	adapter := NewRemoteFetchAdapter()

	if err := adapter.Decompress(context.Background(), server.URL+"/fixture.zip", m.Path(dest)); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "proj", "main.c"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(content) != "int main(void) { return 0; }" {
		t.Fatalf("unpacked content = %q", content)
	}

	if _, err := os.Stat(filepath.Join(dest, "proj", "src", "util.c")); err != nil {
		t.Fatalf("nested entry not unpacked: %v", err)
	}
}

func TestRemoteFetchAdapter_DecompressTarGz(t *testing.T) {
	payload := tarGzPayload(t, []archiveFile{
		{name: "proj/", dir: true},
		{name: "proj/lib.rs", content: "pub fn lib() {}"},
	})
	server := serveArchive(t, payload)

	dest := t.TempDir()
	adapter := NewRemoteFetchAdapter()

	if err := adapter.Decompress(context.Background(), server.URL+"/fixture.tar.gz", m.Path(dest)); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "proj", "lib.rs"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(content) != "pub fn lib() {}" {
		t.Fatalf("unpacked content = %q", content)
	}
}

func TestRemoteFetchAdapter_DecompressRejectsEscapingEntries(t *testing.T) {
	payload := tarGzPayload(t, []archiveFile{
		{name: "../evil.txt", content: "owned"},
	})
	server := serveArchive(t, payload)

	dest := t.TempDir()
	adapter := NewRemoteFetchAdapter()

	err := adapter.Decompress(context.Background(), server.URL+"/fixture.tgz", m.Path(dest))
	if err == nil || !strings.Contains(err.Error(), "escapes destination") {
		t.Fatalf("Decompress() error = %v, want escape rejection", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt")); !os.IsNotExist(err) {
		t.Fatalf("escaping entry was written outside the destination")
	}
}

func TestRemoteFetchAdapter_DecompressUnsupportedFormat(t *testing.T) {
	adapter := NewRemoteFetchAdapter()

	err := adapter.Decompress(context.Background(), "https://example.com/code.rar", m.Path(t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "unsupported archive format") {
		t.Fatalf("Decompress() error = %v, want format rejection", err)
	}
}

func TestRemoteFetchAdapter_DecompressHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	adapter := NewRemoteFetchAdapter()

	err := adapter.Decompress(context.Background(), server.URL+"/missing.zip", m.Path(t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("Decompress() error = %v, want status rejection", err)
	}
}

func TestSecurePath(t *testing.T) {
	dest := m.Path(t.TempDir())

	target, err := securePath(dest, "sub/name.c")
	if err != nil {
		t.Fatalf("securePath() error = %v", err)
	}

	if target != filepath.Join(string(dest), "sub", "name.c") {
		t.Fatalf("securePath() = %q", target)
	}

	if _, err := securePath(dest, "../evil"); err == nil {
		t.Fatalf("securePath() accepted an escaping name")
	}
}

type archiveFile struct {
	name    string
	content string
	dir     bool
}

func zipPayload(t *testing.T, files []archiveFile) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	for _, file := range files {
		header := &zip.FileHeader{Name: file.name, Method: zip.Deflate}
		if file.dir {
			header.SetMode(fs.ModeDir | 0o755)
		} else {
			header.SetMode(0o644)
		}

		entry, err := writer.CreateHeader(header)
		if err != nil {
			t.Fatalf("CreateHeader(%s) error = %v", file.name, err)
		}

		if _, err := entry.Write([]byte(file.content)); err != nil {
			t.Fatalf("Write(%s) error = %v", file.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	return buf.Bytes()
}

func tarGzPayload(t *testing.T, files []archiveFile) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	writer := tar.NewWriter(gz)

	for _, file := range files {
		header := &tar.Header{Name: file.name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(file.content))}
		if file.dir {
			header = &tar.Header{Name: file.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}

		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("WriteHeader(%s) error = %v", file.name, err)
		}

		if _, err := writer.Write([]byte(file.content)); err != nil {
			t.Fatalf("Write(%s) error = %v", file.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	return buf.Bytes()
}

func serveArchive(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	return server
}
