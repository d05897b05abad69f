package adapter

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	m "codesift.dev/pkg/codesift/internal/model"
)

// FetchAdapter downloads a remote repository into a local directory so
// the rest of the pipeline can treat it like any other checkout.
type FetchAdapter interface {
	// Clone performs a shallow git clone of url into dest.
	Clone(ctx context.Context, url string, dest m.Path) error

	// Decompress downloads a .zip, .tar.gz or .tgz archive from url and
	// unpacks it into dest, preserving the archive's layout.
	Decompress(ctx context.Context, url string, dest m.Path) error
}

// RemoteFetchAdapter is the network-backed FetchAdapter.
type RemoteFetchAdapter struct {
	client *http.Client
}

// NewRemoteFetchAdapter creates a fetch adapter using the default HTTP
// client. Cancellation comes from the request context, not a client
// timeout, since archive downloads can be arbitrarily large.
func NewRemoteFetchAdapter() *RemoteFetchAdapter {
	return &RemoteFetchAdapter{client: &http.Client{}}
}

// Clone implements FetchAdapter. History is not needed for extraction, so
// the clone is depth-1.
func (a *RemoteFetchAdapter) Clone(ctx context.Context, repoURL string, dest m.Path) error {
	slog.Info("cloning repository", "url", repoURL, "dest", dest)

	if _, err := gogit.PlainCloneContext(ctx, string(dest), false, &gogit.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	}); err != nil {
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}

	return nil
}

// Decompress implements FetchAdapter.
func (a *RemoteFetchAdapter) Decompress(ctx context.Context, archiveURL string, dest m.Path) error {
	parsed, err := url.Parse(archiveURL)
	if err != nil {
		return fmt.Errorf("parse url %s: %w", archiveURL, err)
	}

	name := strings.ToLower(path.Base(parsed.Path))
	isZip := strings.HasSuffix(name, ".zip")
	isTar := strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")

	if !isZip && !isTar {
		return fmt.Errorf("unsupported archive format %q (supported: .zip, .tar.gz, .tgz)", name)
	}

	slog.Info("downloading archive", "url", archiveURL, "dest", dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", archiveURL, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", archiveURL, resp.Status)
	}

	if isZip {
		return a.unzip(resp.Body, dest)
	}

	return a.untar(resp.Body, dest)
}

// unzip spools the archive to a temporary file first; the zip directory
// sits at the end of the stream.
func (a *RemoteFetchAdapter) unzip(body io.Reader, dest m.Path) error {
	spool, err := os.CreateTemp("", "codesift-archive-*.zip")
	if err != nil {
		return fmt.Errorf("spool archive: %w", err)
	}

	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, body)
	if err != nil {
		return fmt.Errorf("spool archive: %w", err)
	}

	reader, err := zip.NewReader(spool, size)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	for _, entry := range reader.File {
		target, err := securePath(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("unpack %s: %w", entry.Name, err)
			}

			continue
		}

		if err := writeArchiveEntry(target, entry.Mode(), func() (io.ReadCloser, error) { return entry.Open() }); err != nil {
			return fmt.Errorf("unpack %s: %w", entry.Name, err)
		}
	}

	return nil
}

func (a *RemoteFetchAdapter) untar(body io.Reader, dest m.Path) error {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() { _ = gz.Close() }()

	archive := tar.NewReader(gz)

	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := securePath(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("unpack %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			mode := header.FileInfo().Mode()
			if err := writeArchiveEntry(target, mode, func() (io.ReadCloser, error) {
				return io.NopCloser(archive), nil
			}); err != nil {
				return fmt.Errorf("unpack %s: %w", header.Name, err)
			}
		default:
			slog.Debug("skipping archive entry", "name", header.Name, "type", header.Typeflag)
		}
	}
}

func writeArchiveEntry(target string, mode os.FileMode, open func() (io.ReadCloser, error)) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}

	src, err := open()
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	// #nosec G304 - target is confined to the destination directory
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	// #nosec G110 - unpacking user-requested archives is the point here
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()

		return err
	}

	return dst.Close()
}

// securePath joins an archive entry name onto dest, rejecting names that
// escape it.
func securePath(dest m.Path, name string) (string, error) {
	target := filepath.Join(string(dest), name)
	if target != filepath.Clean(string(dest)) &&
		!strings.HasPrefix(target, filepath.Clean(string(dest))+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}

	return target, nil
}
