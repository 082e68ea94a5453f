// Package phone turns user-typed phone numbers into the single canonical
// "+<country><subscriber>" form used as the verification key.
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/phone-verify/internal/domain"
)

const (
	minPlusLen = 8
	maxPlusLen = 18
)

// Normalizer applies the recognized input shapes using a configured country code.
type Normalizer struct {
	cc string
}

// NewNormalizer resolves the assumed country calling code. A positive
// countryCode wins; otherwise the ISO region is looked up, falling back to EG.
func NewNormalizer(region string, countryCode int) *Normalizer {
	if countryCode <= 0 {
		countryCode = phonenumbers.GetCountryCodeForRegion(strings.ToUpper(region))
	}
	if countryCode <= 0 {
		countryCode = phonenumbers.GetCountryCodeForRegion("EG")
	}
	return &Normalizer{cc: strconv.Itoa(countryCode)}
}

// CountryCode returns the assumed calling code without the leading plus.
func (n *Normalizer) CountryCode() string { return n.cc }

// Normalize returns the canonical form of raw or domain.ErrInvalidPhone.
func (n *Normalizer) Normalize(raw string) (string, error) {
	plus, digits := clean(raw)
	switch {
	case plus:
		if l := len(digits) + 1; l >= minPlusLen && l <= maxPlusLen {
			return "+" + digits, nil
		}
	case len(digits) == 11 && digits[0] == '0':
		return "+" + n.cc + digits[1:], nil
	case len(digits) == 10:
		return "+" + n.cc + digits, nil
	}
	return "", domain.ErrInvalidPhone
}

// IsValid reports whether Normalize would accept raw.
func (n *Normalizer) IsValid(raw string) bool {
	_, err := n.Normalize(raw)
	return err == nil
}

// Canonicalize is the lenient form: the normalized value when raw is valid,
// otherwise "+" followed by whatever digits raw contains. Empty when raw has no digits.
func (n *Normalizer) Canonicalize(raw string) string {
	if v, err := n.Normalize(raw); err == nil {
		return v
	}
	_, digits := clean(raw)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// LegacyVariants lists every stored form a phone may have been written under
// by older clients. Used when deleting records by phone.
func (n *Normalizer) LegacyVariants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	candidates := []string{
		raw,
		"+" + strings.TrimPrefix(raw, "+"),
		strings.TrimPrefix(raw, "+"),
		n.Canonicalize(raw),
	}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || c == "+" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Mask hides everything but the last four characters.
func Mask(p string) string {
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}

// clean keeps digits and reports whether a plus preceded the first digit.
func clean(raw string) (plus bool, digits string) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			plus = true
		}
	}
	return plus, b.String()
}
