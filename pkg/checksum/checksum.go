// Package checksum provides SHA-256 utilities for artifact payload integrity.
// A payload's checksum is returned at draft creation so the publishing CLI can
// confirm what the server stored, and doubles as the ETag on install responses
// so repeated installs of the same component can short-circuit on
// If-None-Match. Keeping the hashing in one package avoids duplicating
// crypto/sha256 wiring across the publish and install paths.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256Hex returns the hex-encoded SHA-256 digest of data
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CalculateSHA256 calculates the SHA-256 checksum of data from a reader
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifySHA256 reports whether the checksum of data matches expectedChecksum
func VerifySHA256(reader io.Reader, expectedChecksum string) (bool, error) {
	actualChecksum, err := CalculateSHA256(reader)
	if err != nil {
		return false, err
	}

	return actualChecksum == expectedChecksum, nil
}
