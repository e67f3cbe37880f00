// Package token issues opaque bearer credentials for public signer links.
package token

import (
	"encoding/base64"
	"time"

	"github.com/inkseal/inkseal/internal/crypto"
)

// TTL is the fixed validity window of a public signer link.
const TTL = 48 * time.Hour

// tokenBytes of entropy per token; 256 bits makes tokens unguessable and
// collisions ignorable (uniqueness is still constraint-backed in the DB).
const tokenBytes = 32

// Issue returns a new unguessable opaque identifier, URL-safe for embedding
// in a shareable link.
func Issue() (string, error) {
	b, err := crypto.RandBytes(tokenBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ExpiryFor returns the expiry timestamp for a token issued at issuedAt.
func ExpiryFor(issuedAt time.Time) time.Time {
	return issuedAt.Add(TTL)
}
