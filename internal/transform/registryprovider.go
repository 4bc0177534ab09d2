package transform

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"classpath-cache/internal/archive"
	"classpath-cache/internal/hierarchy"
	"classpath-cache/internal/keys"
	"classpath-cache/internal/snapshot"
	"classpath-cache/internal/store"
)

// hierarchyFileSuffix names the serialized per-entry registry stored inside
// the entry's cache directory, next to where its transformed artifact goes.
const hierarchyFileSuffix = ".hierarchy"

// registryProvider builds the merged type hierarchy registry for a whole
// classpath. Per-entry scans go through the shared executor, so they are
// deduplicated by content hash, run concurrently and drop missing entries
// exactly like entry transforms do. Each per-entry registry is cached on
// disk keyed by (config hash, content hash); a warm cache skips rescanning.
type registryProvider struct {
	cache     *store.Cache
	snapshots snapshot.Resolver
	workers   int
	log       *slog.Logger
}

func (p *registryProvider) registryFor(entries []string, configHash keys.Digest) (*hierarchy.Registry, error) {
	registries, err := transformAll(p.cache, p.workers, entries,
		func(entry string, seen *seenSet) (resolution[*hierarchy.Registry], error) {
			snap, err := p.snapshots.Snapshot(entry)
			if err != nil {
				return absent[*hierarchy.Registry](), err
			}
			if snap.Kind == snapshot.KindMissing || !seen.Add(snap.Hash) {
				return absent[*hierarchy.Registry](), nil
			}
			return deferred(func() (*hierarchy.Registry, error) {
				return p.scanEntry(entry, snap, configHash)
			}), nil
		})
	if err != nil {
		return nil, err
	}
	return hierarchy.MergeAll(registries), nil
}

func (p *registryProvider) scanEntry(entry string, snap snapshot.ContentSnapshot, configHash keys.Digest) (*hierarchy.Registry, error) {
	key := keys.DeriveKey(configHash, snap.Hash)
	name := filepath.Base(entry)
	if snap.Kind == snapshot.KindDirectory {
		name += ".jar"
	}
	hierarchyFile := filepath.Join(p.cache.EntryDir(key.String()), name+hierarchyFileSuffix)

	if reg, err := hierarchy.ReadFile(hierarchyFile); err == nil {
		return reg, nil
	}

	reg := hierarchy.NewRegistry()
	err := archive.Visit(entry, func(itemName string, content []byte) error {
		if !strings.HasSuffix(itemName, ".class") {
			return nil
		}
		if err := reg.VisitClass(content); err != nil {
			// One unreadable class does not invalidate the rest of the entry.
			p.log.Debug("skipping unreadable class definition",
				"entry", entry, "class", itemName, "error", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, archive.ErrMalformed) {
			return nil, err
		}
		// Badly formed archive: discard the contents, persist an empty
		// registry so the scan is not repeated next time.
		p.log.Debug("malformed archive, no type hierarchy to discover",
			"entry", entry, "error", err)
		reg = hierarchy.NewRegistry()
	}
	if err := reg.WriteFile(hierarchyFile); err != nil {
		return nil, err
	}
	return reg, nil
}
