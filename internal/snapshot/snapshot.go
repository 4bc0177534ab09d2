// Package snapshot resolves a classpath entry path into a content
// descriptor: whether it is a file, a directory or missing, plus a digest
// over its content. Identity for caching purposes is content, not location,
// so two copies of the same archive in different places share a hash.
//
// The resolver performs no caching of its own; every call reflects the
// current on-disk state.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"classpath-cache/internal/keys"
)

// Kind classifies what a path points at.
type Kind int

const (
	KindMissing Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "missing"
	}
}

// ContentSnapshot describes an entry at a point in time. For missing
// entries Hash is empty.
type ContentSnapshot struct {
	Kind Kind
	Hash keys.Digest
}

// Resolver produces content snapshots for paths.
type Resolver interface {
	Snapshot(path string) (ContentSnapshot, error)
}

// FSResolver reads the local filesystem. The zero value is ready to use.
type FSResolver struct{}

// Snapshot hashes the entry at path. A nonexistent path yields KindMissing
// and no error; an I/O failure while reading content is an error.
func (FSResolver) Snapshot(path string) (ContentSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ContentSnapshot{Kind: KindMissing}, nil
		}
		return ContentSnapshot{}, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if info.IsDir() {
		hash, err := hashDir(path)
		if err != nil {
			return ContentSnapshot{}, fmt.Errorf("snapshot %s: %w", path, err)
		}
		return ContentSnapshot{Kind: KindDirectory, Hash: hash}, nil
	}
	hash, err := hashFile(path)
	if err != nil {
		return ContentSnapshot{}, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return ContentSnapshot{Kind: KindFile, Hash: hash}, nil
}

func hashFile(path string) (keys.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return keys.SumBytes(data), nil
}

// hashDir hashes the recursive structure of a directory: each regular file
// contributes its slash-separated relative path and content, in the
// deterministic lexical order of fs.WalkDir. Length prefixing keeps
// (path, content) pairs unambiguous, so renames and content edits always
// change the digest.
func hashDir(root string) (keys.Digest, error) {
	h := keys.NewHasher()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
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
		h.WriteField([]byte(filepath.ToSlash(rel)))
		h.WriteField(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return h.Sum(), nil
}
