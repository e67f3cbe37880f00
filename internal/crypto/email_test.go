package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkseal/inkseal/internal/errs"
)

func TestValidEmail(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"signer@example.com", "a.b+c@sub.example.org", "AB@EXAMPLE.COM"} {
		require.True(t, ValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "no-at-sign", "@example.com", "user@", "user@nodot", "user @example.com"} {
		require.False(t, ValidEmail(bad), bad)
	}
}

func TestHashEmail_VerifyRoundTrip(t *testing.T) {
	t.Parallel()
	h, err := HashEmail("signer@example.com")
	require.NoError(t, err)

	require.True(t, VerifyEmail("signer@example.com", h))
	// case-insensitive binding
	require.True(t, VerifyEmail("Signer@Example.COM", h))
	require.False(t, VerifyEmail("other@example.com", h))
	require.False(t, VerifyEmail("signer@example.com", h[:8]))
}

func TestHashEmail_SaltedPerCall(t *testing.T) {
	t.Parallel()
	a, err := HashEmail("signer@example.com")
	require.NoError(t, err)
	b, err := HashEmail("signer@example.com")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashEmail_InvalidRejected(t *testing.T) {
	t.Parallel()
	_, err := HashEmail("not-an-email")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()
	// a single-character local part is returned as-is, not doubled
	got, err := MaskEmail("a@example.com")
	require.NoError(t, err)
	require.Equal(t, "a@example.com", got)

	got, err = MaskEmail("ab@example.com")
	require.NoError(t, err)
	require.Equal(t, "ab@example.com", got)

	got, err = MaskEmail("signer@example.com")
	require.NoError(t, err)
	require.Equal(t, "s****r@example.com", got)
	require.NotContains(t, strings.TrimSuffix(got, "@example.com"), "igne")

	_, err = MaskEmail("bogus")
	require.ErrorIs(t, err, errs.ErrValidation)
}
