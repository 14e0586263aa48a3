package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a stable hex encoded sha256 of data. Used to detect
// whether polled content changed.
func Fingerprint(data []byte) string {
	hasher := sha256.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}
