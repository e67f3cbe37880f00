// Package limiter throttles failed access attempts against public signer links.
package limiter

import (
	"context"
	"time"
)

// Limiter controls public-link access attempts and temporary lockouts.
// Keys are (token, ip-hash): a public link under an email-guessing attack
// locks out the guessing origin without disabling the link for its signer.
type Limiter interface {
	// Allow reports whether access is currently allowed and optional retry-after.
	Allow(ctx context.Context, tok string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful email match.
	Success(ctx context.Context, tok string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, tok string, ipHash []byte) (bool, time.Duration, error)
}

// Noop is a Limiter that never blocks. Used when throttling is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
func (Noop) Success(context.Context, string, []byte) error { return nil }
func (Noop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
