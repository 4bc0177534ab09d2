// Package hierarchy indexes supertype and interface relationships among the
// compiled type definitions contained in classpath entries. Instrumentation
// decisions for one entry may depend on ancestry declared in another, so
// per-entry registries are built independently and merged into one index
// covering a whole classpath.
//
// A registry is built once per distinct entry content and persisted next to
// the entry's transformed artifact, compressed with zstd. Persistence is an
// optimization only; a cold cache just rescans.
package hierarchy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// TypeInfo holds the declared ancestry of one type, in internal slash form.
type TypeInfo struct {
	Super      string   `json:"super,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
}

// Registry maps type names to their declared ancestry. The zero value is
// not usable; call NewRegistry.
type Registry struct {
	types map[string]TypeInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeInfo)}
}

// VisitClass parses one compiled type definition and records its edges.
func (r *Registry) VisitClass(data []byte) error {
	decl, err := parseClass(data)
	if err != nil {
		return err
	}
	info := TypeInfo{Super: decl.Super}
	if len(decl.Interfaces) > 0 {
		info.Interfaces = append([]string(nil), decl.Interfaces...)
		sort.Strings(info.Interfaces)
	}
	r.types[decl.Name] = info
	return nil
}

// Info returns the recorded ancestry for a type name.
func (r *Registry) Info(name string) (TypeInfo, bool) {
	info, ok := r.types[name]
	return info, ok
}

// SuperTypes returns the transitive chain of declared supertypes for name,
// nearest first, following only edges known to this registry.
func (r *Registry) SuperTypes(name string) []string {
	var chain []string
	seen := map[string]bool{name: true}
	for {
		info, ok := r.types[name]
		if !ok || info.Super == "" || seen[info.Super] {
			return chain
		}
		chain = append(chain, info.Super)
		seen[info.Super] = true
		name = info.Super
	}
}

// Len reports the number of indexed types.
func (r *Registry) Len() int {
	return len(r.types)
}

// TypeNames returns all indexed type names in sorted order.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge folds every edge of other into r. Later edges for the same type
// name win, but since identical type names carry identical declarations in
// practice the merge is effectively commutative.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for name, info := range other.types {
		r.types[name] = info
	}
}

// MergeAll combines the given registries into a single new registry.
func MergeAll(registries []*Registry) *Registry {
	merged := NewRegistry()
	for _, reg := range registries {
		merged.Merge(reg)
	}
	return merged
}

// serialized is the on-disk form: a sorted, deterministic JSON document.
type serialized struct {
	FormatVersion string              `json:"formatVersion"`
	Types         map[string]TypeInfo `json:"types"`
}

const formatVersion = "1"

// Encode writes the registry as zstd-compressed JSON.
func (r *Registry) Encode(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)
	if err := enc.Encode(serialized{FormatVersion: formatVersion, Types: r.types}); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads a registry previously written by Encode.
func Decode(rd io.Reader) (*Registry, error) {
	zr, err := zstd.NewReader(rd)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var s serialized
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return nil, err
	}
	if s.FormatVersion != formatVersion {
		return nil, fmt.Errorf("unsupported hierarchy format version %q", s.FormatVersion)
	}
	reg := NewRegistry()
	for name, info := range s.Types {
		reg.types[name] = info
	}
	return reg, nil
}

// WriteFile persists the registry atomically (temp file + rename).
func (r *Registry) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := r.Encode(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadFile loads a registry persisted by WriteFile.
func ReadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
