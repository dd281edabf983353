// Package sha256 digests natural keys into fixed-width store keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher hashes arbitrary bytes to a hex SHA-256 digest.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key digests a stat record natural key. The raw key contains control
// separators that some stores reject in text columns.
func (h *Hasher) Key(naturalKey string) string {
	return h.Hash([]byte(naturalKey))
}
