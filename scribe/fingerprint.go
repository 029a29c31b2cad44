package scribe

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Fingerprint returns the lowercase hex SHA-256 digest of content. Two files
// with identical bytes share a fingerprint regardless of name or metadata,
// and a fingerprint match is treated as "already processed".
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile fingerprints the content of a file on disk.
func FingerprintFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Fingerprint(content), nil
}
