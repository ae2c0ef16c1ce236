package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashStorageScope returns a filesystem-safe directory name for a storage
// scope such as a batch ID.
func HashStorageScope(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
