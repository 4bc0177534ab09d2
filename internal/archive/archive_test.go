package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	w, err := NewWriter(path)
	require.NoError(t, err)
	// Deterministic insert order for reproducibility checks.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, name := range names {
		require.NoError(t, w.Add(name, []byte(entries[name])))
	}
	require.NoError(t, w.Close())
}

func TestVisitZipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.jar")
	buildZip(t, path, map[string]string{
		"pkg/One.class": "class one",
		"META-INF/x":    "resource",
	})

	got := map[string]string{}
	err := Visit(path, func(name string, content []byte) error {
		got[name] = string(content)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"pkg/One.class": "class one",
		"META-INF/x":    "resource",
	}, got)
}

func TestVisitDirectoryUsesSlashRelativeNames(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "pkg", "One.class")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("class one"), 0o644))

	var names []string
	err := Visit(root, func(name string, _ []byte) error {
		names = append(names, name)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/One.class"}, names)
}

func TestVisitMalformedArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	err := Visit(path, func(string, []byte) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWriterIsReproducible(t *testing.T) {
	dir := t.TempDir()
	entries := map[string]string{"a.class": "a", "b/c.class": "bc"}
	p1 := filepath.Join(dir, "one.jar")
	p2 := filepath.Join(dir, "two.jar")
	buildZip(t, p1, entries)
	buildZip(t, p2, entries)

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)

	assert.Equal(t, b1, b2, "archives with identical content should be byte-identical")
}

func TestSanitizePath(t *testing.T) {
	cases := map[string]string{
		"a/b/c.class":      "a/b/c.class",
		"/leading/slash":   "leading/slash",
		"../../escape":     "escape",
		"a/./b/../c":       "a/c",
		"":                 "entry",
		"C:/windows/style": "windows/style",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizePath(in), "input %q", in)
	}
}

func TestCopyEntryFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jar")
	dest := filepath.Join(dir, "cache", "key", "src.jar")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, CopyEntry(src, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestCopyEntrySkipsExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jar")
	dest := filepath.Join(dir, "dest.jar")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dest, []byte("cached"), 0o644))

	require.NoError(t, CopyEntry(src, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), got, "existing cached output must not be rewritten")
}

func TestCopyEntryDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "classes")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "One.class"), []byte("one"), 0o644))
	dest := filepath.Join(dir, "cache", "key", "classes")

	require.NoError(t, CopyEntry(src, dest))

	got, err := os.ReadFile(filepath.Join(dest, "pkg", "One.class"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)
}
