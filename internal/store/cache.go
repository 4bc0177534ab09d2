// Package store holds the persistent, cross-process side of the transform
// cache: the cache directory itself, guarded by an exclusive on-disk scope
// acquired once per batch, and the access-time journal consumed by external
// eviction policy.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const lockFileName = ".lock"

// staleLockAge is how old a lock file must be before another process may
// assume its owner died without releasing it.
const staleLockAge = 10 * time.Minute

// Cache is the on-disk container for transformed artifacts. Each artifact
// lives in its own subdirectory of BaseDir named by its cache entry key.
// Access across processes is serialized at batch granularity by UseCache.
type Cache struct {
	baseDir  string
	ownerID  string
	lockPoll time.Duration
}

// Open prepares the cache rooted at baseDir, creating it if needed.
func Open(baseDir string) (*Cache, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("open cache %s: %w", baseDir, err)
	}
	return &Cache{
		baseDir:  abs,
		ownerID:  uuid.NewString(),
		lockPoll: 50 * time.Millisecond,
	}, nil
}

// BaseDir returns the absolute cache root.
func (c *Cache) BaseDir() string {
	return c.baseDir
}

// Contains reports whether path lies under the cache root. Entries that do
// are assumed pre-transformed and are passed through unchanged.
func (c *Cache) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(c.baseDir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// EntryDir returns the directory for a cache entry key.
func (c *Cache) EntryDir(key string) string {
	return filepath.Join(c.baseDir, key)
}

// UseCache acquires the cache's exclusive cross-process scope, runs fn and
// releases the scope. The call blocks until the scope is available. One
// batch of transforms equals one critical section; files inside the scope
// are not locked individually.
func (c *Cache) UseCache(fn func() error) error {
	release, err := c.acquireLock()
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// acquireLock creates the lock file exclusively, retrying until it wins.
// The file records the owner id and pid for post-mortem diagnosis; a lock
// older than staleLockAge is treated as abandoned and broken.
func (c *Cache) acquireLock() (func(), error) {
	lockPath := filepath.Join(c.baseDir, lockFileName)
	contents := fmt.Sprintf("%s %d\n", c.ownerID, os.Getpid())
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if _, werr := f.WriteString(contents); werr != nil {
				_ = f.Close()
				_ = os.Remove(lockPath)
				return nil, werr
			}
			if cerr := f.Close(); cerr != nil {
				_ = os.Remove(lockPath)
				return nil, cerr
			}
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock cache %s: %w", c.baseDir, err)
		}
		if info, serr := os.Stat(lockPath); serr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(lockPath)
			continue
		}
		time.Sleep(c.lockPoll)
	}
}
