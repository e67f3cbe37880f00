// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers. Every error returned across
// the service boundary wraps exactly one of these.
var (
	// ErrValidation indicates malformed caller input, rejected before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist or is not
	// owned by the caller (ownership mismatches are reported as absence).
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a lifecycle-state guard failure (wrong status,
	// already consumed, already signed). The caller must re-fetch state.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists indicates a unique constraint violation
	// (duplicate upload, duplicate internal placeholder, existing artifact).
	ErrAlreadyExists = errors.New("already exists")

	// ErrExpired indicates a public signer token past its validity window.
	ErrExpired = errors.New("expired")

	// ErrForbidden indicates a public caller whose email does not match the
	// signature's bound signer.
	ErrForbidden = errors.New("forbidden")

	// ErrIntegrity indicates a content fingerprint mismatch: the document
	// mutated underneath the workflow. Fatal for the attempt, never a race.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrDependency indicates a storage or datastore I/O failure.
	ErrDependency = errors.New("dependency failure")

	// ErrRateLimited indicates temporary lockout of a public link after
	// repeated failed access attempts.
	ErrRateLimited = errors.New("rate limited")
)
