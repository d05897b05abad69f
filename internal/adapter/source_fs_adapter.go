// Package adapter contains infrastructure adapters for the codesift CLI:
// filesystem access, external processes, tree-sitter extractors, the
// Ghidra backend, and dataset persistence.
package adapter

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	m "codesift.dev/pkg/codesift/internal/model"
)

// skippedDirs are never scanned or copied.
var skippedDirs = map[string]struct{}{
	".git":         {},
	"vendor":       {},
	"node_modules": {},
}

// binarySniffLen is how much of a file's head is inspected to classify it
// as binary.
const binarySniffLen = 1024

// SourceFSAdapter abstracts filesystem-specific operations that the domain
// layer relies on when scanning user repositories. It intentionally hides
// direct `os` access so the workflow logic can be tested without touching
// the disk.
type SourceFSAdapter interface {
	// FilesWithExtensions returns every file under root whose extension is
	// in extensions (case-insensitive, with leading dot), sorted.
	FilesWithExtensions(root m.Path, extensions []string) ([]m.Path, error)

	// StreamFilesWithExtensions walks root lazily, delivering matches as
	// they are discovered. The path channel closes when the walk ends; a
	// walk failure is delivered on the error channel.
	StreamFilesWithExtensions(ctx context.Context, root m.Path, extensions []string) (<-chan m.Path, <-chan error)

	// ListDir returns the immediate children of a directory, sorted.
	ListDir(path m.Path) ([]m.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// IsBinaryFile sniffs the head of the file for non-text bytes.
	IsBinaryFile(path m.Path) (bool, error)

	// FileInfo returns metadata for a path so the domain can check
	// existence or distinguish files from directories.
	FileInfo(path m.Path) (os.FileInfo, error)

	// CreateTempDir creates a temporary directory.
	CreateTempDir(pattern string) (m.Path, error)

	// RemoveAll removes a directory and all its contents.
	RemoveAll(path m.Path) error

	// CopyDir recursively copies a directory tree.
	CopyDir(src, dst m.Path) error

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// RelPath returns the relative path from base to target.
	RelPath(base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// LocalSourceFSAdapter is the os-backed implementation of SourceFSAdapter.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter instance ready
// to be wired into the workflow.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// FilesWithExtensions returns every matching file under root, sorted.
func (a *LocalSourceFSAdapter) FilesWithExtensions(root m.Path, extensions []string) ([]m.Path, error) {
	var files []m.Path

	err := walkWithExtensions(root, extensions, func(path m.Path) error {
		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files, nil
}

// StreamFilesWithExtensions walks root lazily in a background goroutine.
func (a *LocalSourceFSAdapter) StreamFilesWithExtensions(ctx context.Context, root m.Path, extensions []string) (<-chan m.Path, <-chan error) {
	paths := make(chan m.Path)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)

		err := walkWithExtensions(root, extensions, func(path m.Path) error {
			select {
			case paths <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return paths, errs
}

func walkWithExtensions(root m.Path, extensions []string, fn func(m.Path) error) error {
	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		wanted[strings.ToLower(ext)] = struct{}{}
	}

	return filepath.Walk(string(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if _, skip := skippedDirs[filepath.Base(path)]; skip && path != string(root) {
				return filepath.SkipDir
			}

			return nil
		}

		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		return fn(m.Path(path))
	})
}

// ListDir returns the immediate children of a directory, sorted.
func (a *LocalSourceFSAdapter) ListDir(path m.Path) ([]m.Path, error) {
	entries, err := os.ReadDir(string(path))
	if err != nil {
		return nil, err
	}

	children := make([]m.Path, 0, len(entries))
	for _, entry := range entries {
		children = append(children, m.Path(filepath.Join(string(path), entry.Name())))
	}

	return children, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// IsBinaryFile reports whether the head of the file looks like compiled
// output rather than text: a NUL byte or any byte above 0x7F.
func (a *LocalSourceFSAdapter) IsBinaryFile(path m.Path) (bool, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return false, err
	}

	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, binarySniffLen)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false, err
	}
	head = head[:n]

	if bytes.IndexByte(head, 0) >= 0 {
		return true, nil
	}
	for _, b := range head {
		if b > 0x7F {
			return true, nil
		}
	}

	return false, nil
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// CreateTempDir creates a temporary directory.
func (a *LocalSourceFSAdapter) CreateTempDir(pattern string) (m.Path, error) {
	tmpDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", err
	}

	return m.Path(tmpDir), nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(path m.Path) error {
	return os.RemoveAll(string(path))
}

// CopyDir recursively copies a directory tree.
func (a *LocalSourceFSAdapter) CopyDir(src, dst m.Path) error {
	return filepath.Walk(string(src), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(string(src), path)
		if err != nil {
			return err
		}

		// Skip common directories that don't need to be copied
		if info.IsDir() {
			baseName := filepath.Base(path)
			if _, skip := skippedDirs[baseName]; skip && path != string(src) {
				return filepath.SkipDir
			}
		}

		targetPath := filepath.Join(string(dst), relPath)

		if info.IsDir() {
			return os.MkdirAll(targetPath, info.Mode())
		}

		return a.copyFile(path, targetPath, info.Mode())
	})
}

// copyFile copies a single file.
func (a *LocalSourceFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	// #nosec G304 - src is internal project file path, not user input
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	// #nosec G304 - dst is internal destination path, not user input
	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return os.Chmod(dst, mode)
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm)
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
