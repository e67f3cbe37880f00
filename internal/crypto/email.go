package crypto

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/inkseal/inkseal/internal/errs"
)

// Argon2id parameters for one-way email binding. An email hash never needs
// to be looked up by value, only compared against a candidate, so a salted
// memory-hard hash is usable and keeps addresses out of rainbow tables.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	emailSaltLen        = 16
)

var emailRe = regexp.MustCompile(`^[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*@(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// ValidEmail reports whether addr is a syntactically valid address
// (local part and domain both present).
func ValidEmail(addr string) bool {
	return emailRe.MatchString(strings.ToLower(addr))
}

// HashEmail returns salt || argon2id(email, salt) for one-way binding of a
// public signer's claimed identity. Addresses are canonicalized to lower
// case before hashing.
func HashEmail(email string) ([]byte, error) {
	if !ValidEmail(email) {
		return nil, fmt.Errorf("hash email %q: %w", email, errs.ErrValidation)
	}
	salt, err := RandBytes(emailSaltLen)
	if err != nil {
		return nil, err
	}
	sum := argon2.IDKey([]byte(strings.ToLower(email)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return append(salt, sum...), nil
}

// VerifyEmail compares a candidate address against a stored salted hash in
// constant time.
func VerifyEmail(email string, stored []byte) bool {
	if len(stored) != emailSaltLen+int(argonKeyLen) {
		return false
	}
	salt, want := stored[:emailSaltLen], stored[emailSaltLen:]
	got := argon2.IDKey([]byte(strings.ToLower(email)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// MaskEmail produces a display hint: first and last character of the local
// part kept, middle starred, domain kept. Used only for UI hinting, never
// for authorization.
func MaskEmail(email string) (string, error) {
	if !ValidEmail(email) {
		return "", fmt.Errorf("mask email %q: %w", email, errs.ErrValidation)
	}
	local, domain, _ := strings.Cut(email, "@")
	if len(local) == 1 {
		return local + "@" + domain, nil
	}
	masked := ""
	if len(local) > 2 {
		masked = strings.Repeat("*", len(local)-2)
	}
	first := string(local[0])
	last := string(local[len(local)-1])
	return first + masked + last + "@" + domain, nil
}
