package phone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phone-verify/internal/domain"
)

func newEG() *Normalizer { return NewNormalizer("EG", 0) }

func TestNewNormalizer_CountryCode(t *testing.T) {
	assert.Equal(t, "20", newEG().CountryCode())
	assert.Equal(t, "1", NewNormalizer("us", 0).CountryCode())
	assert.Equal(t, "44", NewNormalizer("EG", 44).CountryCode())
	assert.Equal(t, "20", NewNormalizer("", 0).CountryCode())
}

func TestNormalize(t *testing.T) {
	n := newEG()
	cases := []struct {
		in, want string
	}{
		{"01012345678", "+201012345678"},
		{"+201012345678", "+201012345678"},
		{"+20 101 234 5678", "+201012345678"},
		{"010-1234-5678", "+201012345678"},
		{"(010) 1234.5678", "+201012345678"},
		{"1012345678", "+201012345678"},
		{"5551234567", "+205551234567"},
		{"+14155550100", "+14155550100"},
		{"+1234567", "+1234567"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := n.Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	n := newEG()
	for _, in := range []string{"", "123", "abc", "+123456", "+1234567890123456789", "123456789012", "11012345678"} {
		t.Run(in, func(t *testing.T) {
			_, err := n.Normalize(in)
			assert.True(t, errors.Is(err, domain.ErrInvalidPhone))
			assert.False(t, n.IsValid(in))
		})
	}
}

func TestNormalize_PlusAfterDigitsIsDropped(t *testing.T) {
	got, err := newEG().Normalize("010+12345678")
	require.NoError(t, err)
	assert.Equal(t, "+201012345678", got)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newEG()
	for _, in := range []string{"01012345678", "1012345678", "+14155550100", "0 100 000 0000"} {
		once, err := n.Normalize(in)
		require.NoError(t, err)
		twice, err := n.Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestCanonicalize(t *testing.T) {
	n := newEG()
	assert.Equal(t, "+201012345678", n.Canonicalize("01012345678"))
	assert.Equal(t, "+123", n.Canonicalize("123"))
	assert.Equal(t, "", n.Canonicalize("abc"))
}

func TestLegacyVariants(t *testing.T) {
	n := newEG()

	assert.ElementsMatch(t,
		[]string{"01012345678", "+01012345678", "+201012345678"},
		n.LegacyVariants("01012345678"))

	assert.ElementsMatch(t,
		[]string{"+201012345678", "201012345678"},
		n.LegacyVariants("+201012345678"))

	assert.Nil(t, n.LegacyVariants("   "))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "*********5678", Mask("+201012345678"))
	assert.Equal(t, "***", Mask("123"))
}
