// Package cache memoizes resolution results across requests, keyed by a
// fingerprint of the snapshot contents plus the requested scope.
//
// CRITICAL INVARIANT: SORTED ORDER REQUIREMENT
// Fingerprints MUST be generated with variables sorted by identity. This
// ensures that identical snapshots produce identical fingerprints regardless
// of the order variables were loaded from storage.
//
// Key Format Version: v1
// Format: {snapshotFingerprint}:{scope}
//
// Changing the fingerprint algorithm or key format silently invalidates
// every cached result, which is safe but wasteful; bump the version note
// above when doing so.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/platinummonkey/envlink/pkg/resolver"
)

// Key identifies one cached resolution result.
type Key struct {
	Fingerprint string
	Scope       string
}

// String formats the key for storage.
func (k Key) String() string {
	return k.Fingerprint + ":" + k.Scope
}

// NewKey builds a cache key for a snapshot and scope.
func NewKey(snap *resolver.Snapshot, scope resolver.Scope) Key {
	return Key{
		Fingerprint: Fingerprint(snap),
		Scope:       scope.String(),
	}
}

// Fingerprint generates a SHA256 hash over every variable in the snapshot,
// in sorted identity order. Two snapshots with the same variables and
// values produce the same fingerprint; any edit, addition, or removal
// changes it, so stale results age out by key rotation rather than
// explicit invalidation.
func Fingerprint(snap *resolver.Snapshot) string {
	hasher := sha256.New()

	for _, id := range snap.SortedIDs() {
		v, ok := snap.Lookup(id)
		if !ok {
			continue
		}
		hasher.Write([]byte(id.String()))
		hasher.Write([]byte{0})
		hasher.Write([]byte(v.Value.Kind.String()))
		hasher.Write([]byte{0})

		switch v.Value.Kind {
		case resolver.RawKind:
			hasher.Write([]byte(v.Value.Raw))
		case resolver.LinkedKind:
			if v.Value.Link != nil {
				hasher.Write([]byte(v.Value.Link.String()))
			}
		case resolver.ConcatenatedKind:
			for _, seg := range v.Value.Segments {
				if seg.Ref != nil {
					hasher.Write([]byte{'r'})
					hasher.Write([]byte(seg.Ref.String()))
				} else {
					hasher.Write([]byte{'l'})
					hasher.Write([]byte(seg.Literal))
				}
				hasher.Write([]byte{0})
			}
		}
		hasher.Write([]byte{0})

		if v.ParseErr != nil {
			hasher.Write([]byte(v.ParseErr.Error()))
			hasher.Write([]byte{0})
		}
	}

	return hex.EncodeToString(hasher.Sum(nil))
}
