// Package crypto implements content fingerprinting and signer-email binding.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/inkseal/inkseal/internal/errs"
)

// Fingerprint returns the SHA-256 digest of raw file bytes. It is computed
// once at upload time and recomputed at finalize time to detect tampering.
func Fingerprint(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("fingerprint: empty input: %w", errs.ErrValidation)
	}
	h := sha256.Sum256(data)
	return h[:], nil
}

// VerifyFingerprint recomputes the digest and compares in constant time.
// A mismatch is fatal for the caller: the content mutated underneath it.
func VerifyFingerprint(data, digest []byte) bool {
	if len(data) == 0 || len(digest) != sha256.Size {
		return false
	}
	got := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(got[:], digest) == 1
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
