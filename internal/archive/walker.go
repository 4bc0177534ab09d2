// Package archive walks and builds the archives and directories that make
// up classpath entries. Walking presents a uniform per-item callback over
// both forms; building produces byte-for-byte reproducible zip archives
// (fixed timestamps, sanitized entry paths, deterministic order as fed by
// the caller).
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrMalformed reports an input that cannot be opened as a valid archive.
// Callers scanning archives treat it as "no content" rather than a failure.
var ErrMalformed = errors.New("malformed archive")

// VisitFunc receives one contained item: its slash-separated name inside
// the entry and its full content.
type VisitFunc func(name string, content []byte) error

// Visit walks every contained item of the entry at path. A directory is
// walked recursively in lexical order; a file is opened as a zip archive.
// A file that is not a valid zip fails with ErrMalformed. Errors returned
// by fn propagate unchanged.
func Visit(path string, fn VisitFunc) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("visit %s: %w", path, err)
	}
	if info.IsDir() {
		return visitDir(path, fn)
	}
	return visitZip(path, fn)
}

func visitDir(root string, fn VisitFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), data)
	})
}

func visitZip(path string, fn VisitFunc) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: %s!%s: %v", ErrMalformed, path, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("%w: %s!%s: %v", ErrMalformed, path, f.Name, err)
		}
		if err := fn(SanitizePath(f.Name), data); err != nil {
			return err
		}
	}
	return nil
}

// SanitizePath normalizes entry paths (forward slashes, no drive, no
// leading '/'), and removes '.' and '..' segments without escaping the
// root.
func SanitizePath(p string) string {
	s := filepath.ToSlash(p)
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "/")
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
			continue
		}
		stack = append(stack, part)
	}
	s = strings.Join(stack, "/")
	if s == "" {
		return "entry"
	}
	return s
}
