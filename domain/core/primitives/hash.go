package primitives

import (
	"crypto/sha256"
	"encoding/hex"
)

// StableHash returns a deterministic hex digest of s, used for
// context-change detection (NodeEmbedding.ContextHash) and as a cache
// key component. It is stable across process restarts and Go versions,
// unlike the built-in maphash/fnv seeded hashes.
func StableHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
