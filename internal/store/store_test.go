package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cache")
	c, err := Open(base)
	require.NoError(t, err)

	info, err := os.Stat(c.BaseDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(c.BaseDir()))
}

func TestContains(t *testing.T) {
	base := t.TempDir()
	c, err := Open(base)
	require.NoError(t, err)

	assert.True(t, c.Contains(filepath.Join(base, "abc123", "lib.jar")))
	assert.True(t, c.Contains(base))
	assert.False(t, c.Contains(filepath.Join(base, "..", "outside.jar")))
	assert.False(t, c.Contains(t.TempDir()))
}

func TestEntryDir(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(c.BaseDir(), "deadbeef"), c.EntryDir("deadbeef"))
}

func TestUseCacheReleasesLock(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.UseCache(func() error { return nil }))

	_, statErr := os.Stat(filepath.Join(c.BaseDir(), lockFileName))
	assert.True(t, os.IsNotExist(statErr), "lock file must be removed after the scope ends")

	// Scope is reusable for the next batch.
	require.NoError(t, c.UseCache(func() error { return nil }))
}

func TestUseCachePropagatesError(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)

	wantErr := assert.AnError
	gotErr := c.UseCache(func() error { return wantErr })

	assert.ErrorIs(t, gotErr, wantErr)
	_, statErr := os.Stat(filepath.Join(c.BaseDir(), lockFileName))
	assert.True(t, os.IsNotExist(statErr), "lock must be released even on failure")
}

func TestUseCacheScopesAreExclusive(t *testing.T) {
	base := t.TempDir()
	c1, err := Open(base)
	require.NoError(t, err)
	c2, err := Open(base)
	require.NoError(t, err)

	var mu sync.Mutex
	active := 0
	maxActive := 0
	batch := func(c *Cache) error {
		return c.UseCache(func() error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		})
	}

	var wg sync.WaitGroup
	for _, c := range []*Cache{c1, c2, c1} {
		wg.Add(1)
		go func(c *Cache) {
			defer wg.Done()
			assert.NoError(t, batch(c))
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "only one batch may hold the scope at a time")
}

func TestJournalMarkAndLookup(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return stamp }

	j.MarkAccessed("/cache/abc/lib.jar")

	got, ok, err := j.LastAccess("/cache/abc/lib.jar")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(stamp))

	_, ok, err = j.LastAccess("/cache/never-seen")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJournalOverwritesOlderStamp(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	j.now = func() time.Time { return first }
	j.MarkAccessed("/cache/x")
	j.now = func() time.Time { return second }
	j.MarkAccessed("/cache/x")

	got, ok, err := j.LastAccess("/cache/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(second))
}
