// Package platform generates the recommendation manifest: a TOML file
// recording recommended dependency and plugin versions for consumers of a
// classpath. Generation is modeled as a simple file-producing task so it
// can slot into an outer task graph; it has no concurrency or caching of
// its own.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Dependency is one recommended module version.
type Dependency struct {
	Group   string `toml:"group"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Plugin is one recommended plugin version.
type Plugin struct {
	ID      string `toml:"id"`
	Version string `toml:"version"`
}

// Manifest is the document written to disk.
type Manifest struct {
	Name         string       `toml:"name"`
	Dependencies []Dependency `toml:"dependencies,omitempty"`
	Plugins      []Plugin     `toml:"plugins,omitempty"`
}

// GenerateTask writes one manifest to OutputPath. Output is deterministic:
// recommendations are sorted before marshalling.
type GenerateTask struct {
	OutputPath string
	Manifest   Manifest
}

// Run produces the manifest file, creating parent directories and staging
// through a temporary sibling so readers never see a partial file.
func (t *GenerateTask) Run() error {
	if t.OutputPath == "" {
		return fmt.Errorf("platform manifest: output path is required")
	}
	m := t.Manifest
	m.Dependencies = append([]Dependency(nil), m.Dependencies...)
	sort.Slice(m.Dependencies, func(i, j int) bool {
		a, b := m.Dependencies[i], m.Dependencies[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Name < b.Name
	})
	m.Plugins = append([]Plugin(nil), m.Plugins...)
	sort.Slice(m.Plugins, func(i, j int) bool { return m.Plugins[i].ID < m.Plugins[j].ID })

	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("platform manifest: %w", err)
	}
	dir := filepath.Dir(t.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(t.OutputPath)+"-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, t.OutputPath)
}

// Load reads a manifest back, for consumers of the recommendations file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("platform manifest %s: %w", path, err)
	}
	return m, nil
}
