// Package card holds syntactic checks on raw card numbers. A number that
// passes is well formed, not necessarily chargeable.
package card

import (
	"strings"
	"unicode"
)

// IsValidNumber strips whitespace and applies the Luhn checksum. Any other
// non-digit character, or an empty input, yields false.
func IsValidNumber(raw string) bool {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if digits == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Last4 returns the trailing four digits for display.
func Last4(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}
