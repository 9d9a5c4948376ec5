// Package phone normalizes Bangladeshi mobile numbers into the 11-digit
// local form expected by the courier (e.g. 01712345678).
package phone

import "strings"

const (
	localLen   = 11
	localStart = "01"
)

// Normalize strips everything but digits and maps the common input shapes
// onto the local 11-digit form:
//
//	01712345678     -> 01712345678
//	+8801712345678  -> 01712345678
//	1712345678      -> 01712345678
//
// Anything else falls back to the last 11 digits. The result is only a
// candidate; use Valid to check it.
func Normalize(input string) string {
	digits := stripNonDigits(input)

	switch {
	case len(digits) == localLen && strings.HasPrefix(digits, localStart):
		return digits
	case len(digits) == 13 && strings.HasPrefix(digits, "8801"):
		return digits[2:]
	case len(digits) == 10 && strings.HasPrefix(digits, "1"):
		return "0" + digits
	case len(digits) > localLen:
		return digits[len(digits)-localLen:]
	default:
		return digits
	}
}

// Valid reports whether s is already in canonical local form.
func Valid(s string) bool {
	if len(s) != localLen || !strings.HasPrefix(s, localStart) {
		return false
	}
	return stripNonDigits(s) == s
}

// Parse normalizes input and reports whether the result is valid.
func Parse(input string) (string, bool) {
	n := Normalize(input)
	return n, Valid(n)
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := range len(s) {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
