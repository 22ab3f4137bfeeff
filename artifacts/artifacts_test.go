package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	w, err := NewWriter(map[Kind]string{
		KindHTML: filepath.Join(root, "html"),
		KindPDF:  filepath.Join(root, "pdf"),
	})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	return w, root
}

func TestFilenameDeterministic(t *testing.T) {
	// WHAT: The same URL always maps to the same file name.
	// WHY: Stable paths make re-crawls overwrite instead of duplicate.
	a := Filename("https://site.ex/page", ".html")
	b := Filename("https://site.ex/page", ".html")
	if a != b {
		t.Errorf("names differ: %q vs %q", a, b)
	}
	if !strings.HasSuffix(a, ".html") || len(a) != 64+len(".html") {
		t.Errorf("unexpected name shape: %q", a)
	}
	if c := Filename("https://site.ex/other", ".html"); c == a {
		t.Error("distinct URLs collided")
	}
}

func TestWriteAndOverwrite(t *testing.T) {
	// WHAT: Write returns a relative path and re-writing replaces content.
	w, _ := testWriter(t)

	path, err := w.Write(KindHTML, "https://site.ex/p", ".html", []byte("v1"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("content: got %q", got)
	}

	path2, err := w.Write(KindHTML, "https://site.ex/p", ".html", []byte("v2"))
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if path2 != path {
		t.Errorf("path changed on rewrite: %q vs %q", path2, path)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "v2" {
		t.Errorf("content after rewrite: got %q", got)
	}
}

func TestWriteFrom(t *testing.T) {
	// WHAT: Streaming writes land complete with no temp files left over.
	w, root := testWriter(t)

	path, err := w.WriteFrom(KindPDF, "https://site.ex/doc.pdf", ".pdf", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("write from: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "%PDF-1.4 data" {
		t.Errorf("content: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Join(root, "pdf"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestUnknownKind(t *testing.T) {
	w, _ := testWriter(t)
	if _, err := w.Write(KindVideo, "https://site.ex/v", ".mp4", []byte("x")); err == nil {
		t.Fatal("expected error for unconfigured kind")
	}
}
