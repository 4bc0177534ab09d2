package transform

import (
	"classpath-cache/internal/hierarchy"
	"classpath-cache/internal/keys"
)

// ClassTransform rewrites a single compiled type definition. How bytes are
// rewritten is the caller's concern; the cache only requires that ConfigHash
// uniquely identifies the rewrite's behavior and version, so that changed
// rewriters never reuse stale cached output.
type ClassTransform interface {
	// TransformClass rewrites one class. name is the item's path inside
	// its entry; registry covers the whole input classpath.
	TransformClass(name string, data []byte, registry *hierarchy.Registry) ([]byte, error)

	// ConfigHash identifies this rewrite for cache key derivation.
	ConfigHash() keys.Digest
}

// PassThroughTransform leaves classes untouched. It stands in when no
// rewriter is configured; its config hash still namespaces its outputs.
type PassThroughTransform struct{}

func (PassThroughTransform) TransformClass(_ string, data []byte, _ *hierarchy.Registry) ([]byte, error) {
	return data, nil
}

func (PassThroughTransform) ConfigHash() keys.Digest {
	return keys.SumStrings("class-transform:pass-through")
}

// ComposeTransforms chains two class rewrites: base first, then additional.
// The combined config hash depends on both, so composite output is cached
// independently from either rewrite alone.
func ComposeTransforms(base, additional ClassTransform) ClassTransform {
	return compositeTransform{base: base, additional: additional}
}

type compositeTransform struct {
	base       ClassTransform
	additional ClassTransform
}

func (c compositeTransform) TransformClass(name string, data []byte, registry *hierarchy.Registry) ([]byte, error) {
	out, err := c.base.TransformClass(name, data, registry)
	if err != nil {
		return nil, err
	}
	return c.additional.TransformClass(name, out, registry)
}

func (c compositeTransform) ConfigHash() keys.Digest {
	h := keys.NewHasher()
	h.WriteField([]byte("class-transform:composite"))
	h.WriteDigest(c.base.ConfigHash())
	h.WriteDigest(c.additional.ConfigHash())
	return h.Sum()
}
