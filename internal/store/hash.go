package store

import (
	"encoding/hex"
	"hash/fnv"
)

// ContentHash FNV-1a hashes parts in order, NUL-separated, and returns the
// hex digest. Shared by any element that needs a stable identity derived
// from its content rather than an author-supplied id (Human gates,
// idempotent Command/Agent leaves) so the same content always resolves to
// the same durable row across restarts.
func ContentHash(parts ...string) string {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
