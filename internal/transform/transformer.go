// Package transform is the content-addressed transform cache for classpath
// entries. Given an ordered list of entries (archives and directories) and
// a requested transform kind, it produces an equivalent ordered list where
// each entry has been deterministically rewritten exactly once per distinct
// content, with results cached on disk keyed by content hash and transform
// configuration.
//
// A batch either fully succeeds, producing a complete order-preserving
// output, or fails as a whole with one surfaced cause. Missing entries are
// dropped silently; duplicate content among multiple input positions
// collapses to a single output, so the output list may be shorter than the
// input list.
package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"classpath-cache/internal/hierarchy"
	"classpath-cache/internal/snapshot"
	"classpath-cache/internal/store"
)

// Kind selects a transform pipeline.
type Kind int

const (
	// KindCopy copies entries verbatim into the trusted cache.
	KindCopy Kind = iota
	// KindInstrument rewrites entries for direct loading by a dedicated
	// loader.
	KindInstrument
	// KindInstrumentAgent rewrites entries for retransformation by a
	// runtime agent; served only by TransformPaired.
	KindInstrumentAgent
)

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindInstrument:
		return "instrument"
	case KindInstrumentAgent:
		return "instrument-agent"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrUnsupportedKind is returned before any work is dispatched when a
// transform kind is not served by the called operation.
var ErrUnsupportedKind = errors.New("unsupported transform kind")

// Pair couples the untouched copy of an entry with its instrumented form,
// for a runtime agent that retransforms the former into the latter on
// demand.
type Pair struct {
	Original    string
	Transformed string
}

// Options configures a Transformer. Cache is required; everything else has
// working defaults.
type Options struct {
	Cache     *store.Cache
	Snapshots snapshot.Resolver
	Tracker   store.AccessTracker
	// Instrumentation rewrites individual classes for the instrument
	// kinds. Defaults to PassThroughTransform.
	Instrumentation ClassTransform
	// Workers bounds the transform pool; defaults to runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

// Transformer drives transform batches against one persistent cache.
type Transformer struct {
	cache      *store.Cache
	snapshots  snapshot.Resolver
	tracker    store.AccessTracker
	instrument ClassTransform
	workers    int
	log        *slog.Logger
	registries *registryProvider
}

// New builds a Transformer from opts.
func New(opts Options) (*Transformer, error) {
	if opts.Cache == nil {
		return nil, errors.New("transform: cache is required")
	}
	t := &Transformer{
		cache:      opts.Cache,
		snapshots:  opts.Snapshots,
		tracker:    opts.Tracker,
		instrument: opts.Instrumentation,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
	if t.snapshots == nil {
		t.snapshots = snapshot.FSResolver{}
	}
	if t.tracker == nil {
		t.tracker = store.NopTracker{}
	}
	if t.instrument == nil {
		t.instrument = PassThroughTransform{}
	}
	if t.workers <= 0 {
		t.workers = runtime.NumCPU()
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	t.registries = &registryProvider{
		cache:     t.cache,
		snapshots: t.snapshots,
		workers:   t.workers,
		log:       t.log,
	}
	return t, nil
}

// Transform rewrites entries according to kind and returns the new ordered
// entry list. KindInstrumentAgent is served by TransformPaired, not here.
func (t *Transformer) Transform(entries []string, kind Kind) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	switch kind {
	case KindCopy:
		return t.runPipeline(entries, newCopyTransformer())
	case KindInstrument:
		return t.runPipeline(entries, newInstrumentTransformer(policyClassLoader, t.instrument))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

// TransformWith applies the kind's transform and then an additional
// caller-supplied class rewrite, cached independently from either alone.
// Only KindInstrument supports an additional rewrite.
func (t *Transformer) TransformWith(entries []string, kind Kind, additional ClassTransform) ([]string, error) {
	if additional == nil {
		return t.Transform(entries, kind)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if kind != KindInstrument {
		return nil, fmt.Errorf("%w: %s with additional transform", ErrUnsupportedKind, kind)
	}
	composed := ComposeTransforms(t.instrument, additional)
	return t.runPipeline(entries, newInstrumentTransformer(policyClassLoader, composed))
}

// TransformPaired runs the agent pipeline: the copy pipeline and the agent
// instrumentation pipeline over the same original entries, zipped
// positionally. Both sub-pipelines read the same inputs and agree on which
// entries are missing or duplicated, so their outputs must have identical
// length; a mismatch is an internal-consistency failure.
func (t *Transformer) TransformPaired(entries []string) ([]Pair, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	originals, err := t.runPipeline(entries, newCopyTransformer())
	if err != nil {
		return nil, err
	}
	instrumented, err := t.runPipeline(entries, newInstrumentTransformer(policyAgent, t.instrument))
	if err != nil {
		return nil, err
	}
	if len(originals) != len(instrumented) {
		return nil, fmt.Errorf("internal: copy pipeline produced %d entries, agent pipeline produced %d",
			len(originals), len(instrumented))
	}
	pairs := make([]Pair, len(originals))
	for i := range originals {
		pairs[i] = Pair{Original: originals[i], Transformed: instrumented[i]}
	}
	return pairs, nil
}

// runPipeline executes one file transformer over entries. Instrumentation
// consults the type hierarchy registry built across the whole input list
// before any individual entry is rewritten; the copy transformer gets an
// empty registry with no scan performed.
func (t *Transformer) runPipeline(entries []string, ft fileTransformer) ([]string, error) {
	registry := hierarchy.NewRegistry()
	if ft.usesTypeHierarchy() {
		var err error
		registry, err = t.registries.registryFor(entries, ft.ConfigHash())
		if err != nil {
			return nil, err
		}
	}
	return transformAll(t.cache, t.workers, entries,
		func(entry string, seen *seenSet) (resolution[string], error) {
			return t.resolveEntry(entry, ft, seen, registry)
		})
}

// resolveEntry classifies one entry: missing entries and duplicate content
// resolve to absent; entries already under the cache base dir pass through
// unchanged; everything else becomes a pending transform.
func (t *Transformer) resolveEntry(entry string, ft fileTransformer, seen *seenSet, registry *hierarchy.Registry) (resolution[string], error) {
	snap, err := t.snapshots.Snapshot(entry)
	if err != nil {
		return absent[string](), err
	}
	if snap.Kind == snapshot.KindMissing {
		return absent[string](), nil
	}
	if t.cache.Contains(entry) {
		// Already transformed output fed back in as input.
		return immediate(entry), nil
	}
	if !seen.Add(snap.Hash) {
		// Same content already resolved earlier in this batch.
		return absent[string](), nil
	}
	return deferred(func() (string, error) {
		out, err := ft.TransformEntry(entry, snap, t.cache.BaseDir(), registry)
		if err != nil {
			return "", err
		}
		if out != entry {
			t.tracker.MarkAccessed(out)
		}
		return out, nil
	}), nil
}
