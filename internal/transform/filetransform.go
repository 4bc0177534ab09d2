package transform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"classpath-cache/internal/archive"
	"classpath-cache/internal/hierarchy"
	"classpath-cache/internal/keys"
	"classpath-cache/internal/snapshot"
)

// cacheFormat versions the on-disk layout shared by all file transformers.
// Bumping it invalidates every cached artifact.
const cacheFormat = "1"

// fileTransformer rewrites one classpath entry into one output entry inside
// the cache. Implementations are pure with respect to (content hash, config
// hash): the same pair always produces the same output path and bytes,
// which is what makes on-disk reuse across processes safe.
type fileTransformer interface {
	// TransformEntry produces the output path for entry inside cacheDir.
	// An output that already exists is returned as-is.
	TransformEntry(entry string, snap snapshot.ContentSnapshot, cacheDir string, registry *hierarchy.Registry) (string, error)

	// ConfigHash identifies the transformer for cache key derivation.
	ConfigHash() keys.Digest

	// usesTypeHierarchy reports whether TransformEntry consults the
	// type hierarchy registry. Only instrumentation does.
	usesTypeHierarchy() bool
}

// copyTransformer copies an entry verbatim into the cache.
type copyTransformer struct {
	config keys.Digest
}

func newCopyTransformer() *copyTransformer {
	return &copyTransformer{config: keys.SumStrings("copy", cacheFormat)}
}

func (t *copyTransformer) ConfigHash() keys.Digest { return t.config }

func (t *copyTransformer) usesTypeHierarchy() bool { return false }

func (t *copyTransformer) TransformEntry(entry string, snap snapshot.ContentSnapshot, cacheDir string, _ *hierarchy.Registry) (string, error) {
	key := keys.DeriveKey(t.config, snap.Hash)
	dest := filepath.Join(cacheDir, key.String(), filepath.Base(entry))
	if err := archive.CopyEntry(entry, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// instrumentPolicy separates the cache namespaces of the two
// instrumentation variants; their outputs are not interchangeable.
type instrumentPolicy string

const (
	policyClassLoader instrumentPolicy = "instrument:classloader"
	policyAgent       instrumentPolicy = "instrument:agent"
)

// instrumentTransformer rebuilds an entry as an archive, passing every
// contained class through the configured ClassTransform. Directory entries
// are emitted as a "<name>.jar" archive.
type instrumentTransformer struct {
	policy  instrumentPolicy
	classes ClassTransform
	config  keys.Digest
}

func newInstrumentTransformer(policy instrumentPolicy, classes ClassTransform) *instrumentTransformer {
	h := keys.NewHasher()
	h.WriteField([]byte(policy))
	h.WriteField([]byte(cacheFormat))
	h.WriteDigest(classes.ConfigHash())
	return &instrumentTransformer{policy: policy, classes: classes, config: h.Sum()}
}

func (t *instrumentTransformer) ConfigHash() keys.Digest { return t.config }

func (t *instrumentTransformer) usesTypeHierarchy() bool { return true }

func (t *instrumentTransformer) TransformEntry(entry string, snap snapshot.ContentSnapshot, cacheDir string, registry *hierarchy.Registry) (string, error) {
	key := keys.DeriveKey(t.config, snap.Hash)
	name := filepath.Base(entry)
	if snap.Kind == snapshot.KindDirectory {
		name += ".jar"
	}
	dest := filepath.Join(cacheDir, key.String(), name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	w, err := archive.NewWriter(dest)
	if err != nil {
		return "", err
	}
	err = archive.Visit(entry, func(itemName string, content []byte) error {
		if strings.HasSuffix(itemName, ".class") {
			rewritten, err := t.classes.TransformClass(itemName, content, registry)
			if err != nil {
				return err
			}
			content = rewritten
		}
		return w.Add(itemName, content)
	})
	if err != nil {
		w.Abort()
		if errors.Is(err, archive.ErrMalformed) {
			// Cannot instrument what cannot be read as an archive; cache
			// the original bytes verbatim instead of failing the batch.
			if cerr := archive.CopyEntry(entry, dest); cerr != nil {
				return "", cerr
			}
			return dest, nil
		}
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return dest, nil
}
