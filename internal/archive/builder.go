package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FixedZipTime ensures byte-for-byte reproducible archives (1980-01-01 UTC).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// Writer builds a zip archive at a destination path. Content is staged in a
// temporary sibling file and renamed into place on Close, so readers never
// observe a partially written archive.
type Writer struct {
	dest    string
	tmpPath string
	f       *os.File
	zw      *zip.Writer
}

// NewWriter starts a new archive destined for dest, creating parent
// directories as needed.
func NewWriter(dest string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(dest), ".tmp-"+filepath.Base(dest)+"-")
	if err != nil {
		return nil, err
	}
	return &Writer{dest: dest, tmpPath: f.Name(), f: f, zw: zip.NewWriter(f)}, nil
}

// Add writes one entry with a sanitized name, fixed timestamp and mode.
func (w *Writer) Add(name string, content []byte) error {
	h := &zip.FileHeader{Name: SanitizePath(name), Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	ew, err := w.zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := ew.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close finalizes the archive and moves it into place.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.abort()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.abort()
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return err
	}
	return os.Rename(w.tmpPath, w.dest)
}

// Abort discards the partially built archive.
func (w *Writer) Abort() {
	w.abort()
}

func (w *Writer) abort() {
	_ = w.f.Close()
	_ = os.Remove(w.tmpPath)
}
