package messaging

import "strings"

const (
	// DefaultCountryCode is prefixed to bare local numbers.
	DefaultCountryCode = "91"

	localNumberLength = 10
	chatSuffix        = "@c.us"
)

// NormalizeAddress converts a phone-like address into the transport's chat
// id: non-digits are stripped, a bare 10-digit local number gets the
// country code, and the chat suffix is appended. Returns "" when the input
// has no digits.
func NormalizeAddress(addr, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	addr = strings.TrimSuffix(strings.TrimSpace(addr), chatSuffix)

	var b strings.Builder
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	if len(digits) == localNumberLength {
		digits = countryCode + digits
	}
	return digits + chatSuffix
}
