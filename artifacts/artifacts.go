// Package artifacts allocates deterministic on-disk paths for fetched
// content and writes files atomically. Paths are stable across runs so a
// re-crawl overwrites rather than duplicates.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind is a category of saved artifact. It keys both the output
// directory and the document's artifact-path map.
type Kind string

const (
	KindHTML       Kind = "html"
	KindMarkdown   Kind = "md"
	KindPDF        Kind = "pdf"
	KindPDFText    Kind = "pdf_text"
	KindVideo      Kind = "video"
	KindTranscript Kind = "transcript"
)

// Writer persists artifacts under per-kind directories.
type Writer struct {
	dirs map[Kind]string
}

// NewWriter creates a Writer and the directories it will write into.
func NewWriter(dirs map[Kind]string) (*Writer, error) {
	for kind, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
	}
	return &Writer{dirs: dirs}, nil
}

// Filename derives the stable artifact name for a URL: the hex SHA-256
// of the URL plus the extension.
func Filename(url, ext string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:]) + ext
}

// Write stores data as the kind's artifact for url and returns the
// relative path (dir joined with the derived filename). The write goes
// through a temp file and rename so readers never see partial content.
func (w *Writer) Write(kind Kind, url, ext string, data []byte) (string, error) {
	dir, ok := w.dirs[kind]
	if !ok {
		return "", fmt.Errorf("no directory configured for artifact kind %q", kind)
	}
	path := filepath.Join(dir, Filename(url, ext))
	if err := atomicWrite(path, data); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	return path, nil
}

// WriteFrom streams r into the kind's artifact for url. Used for large
// payloads (PDF, media) that should not be buffered whole.
func (w *Writer) WriteFrom(kind Kind, url, ext string, r io.Reader) (string, error) {
	dir, ok := w.dirs[kind]
	if !ok {
		return "", fmt.Errorf("no directory configured for artifact kind %q", kind)
	}
	path := filepath.Join(dir, Filename(url, ext))

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	return path, nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
