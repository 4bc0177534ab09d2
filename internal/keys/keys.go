// Package keys derives the content-addressed identifiers used across the
// transform cache. A Digest identifies either raw content (an entry's bytes)
// or a transform configuration; DeriveKey combines the two into the cache
// entry identifier that names the on-disk directory for a transformed
// artifact.
//
// Key derivation must be collision-resistant and order-sensitive: two
// different transforms of identical content must never collide, while the
// same (config, content) pair always maps to the same key. All multi-field
// hashing is length-prefixed to keep field boundaries unambiguous.
package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// Digest is a lowercase hex sha256 digest. It is a value type and is safe
// to use as a map key or an on-disk directory name.
type Digest string

// String returns the hex form of the digest.
func (d Digest) String() string { return string(d) }

// SumBytes hashes a single byte slice.
func SumBytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// SumFields hashes a sequence of fields, each length-prefixed.
func SumFields(fields ...[]byte) Digest {
	h := NewHasher()
	for _, f := range fields {
		h.WriteField(f)
	}
	return h.Sum()
}

// SumStrings hashes a sequence of string fields, each length-prefixed.
func SumStrings(fields ...string) Digest {
	h := NewHasher()
	for _, f := range fields {
		h.WriteField([]byte(f))
	}
	return h.Sum()
}

// Hasher accumulates length-prefixed fields into a sha256 digest.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// WriteField appends one length-prefixed field (8-byte big-endian length,
// then the bytes). Prefixing prevents adjacent fields from being ambiguous.
func (h *Hasher) WriteField(data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.h.Write(length[:])
	h.h.Write(data)
}

// WriteDigest appends a previously computed digest as a field.
func (h *Hasher) WriteDigest(d Digest) {
	h.WriteField([]byte(d))
}

// Sum finalizes the hash.
func (h *Hasher) Sum() Digest {
	return Digest(hex.EncodeToString(h.h.Sum(nil)))
}

// DeriveKey combines a transform configuration digest with a content digest
// into the cache entry identifier. Order matters: config first, then content.
func DeriveKey(configHash, contentHash Digest) Digest {
	h := NewHasher()
	h.WriteDigest(configHash)
	h.WriteDigest(contentHash)
	return h.Sum()
}
