// Package sin canonicalises and validates Canadian Social Insurance Numbers.
package sin

import "strings"

// Format strips everything except digits and regroups a 9-digit SIN as
// DDD-DDD-DDD. Any other digit count yields the empty string.
func Format(raw string) string {
	digits := stripNonDigits(raw)
	if len(digits) != 9 {
		return ""
	}
	return digits[0:3] + "-" + digits[3:6] + "-" + digits[6:9]
}

// Validate reports whether raw contains a 9-digit SIN with a valid Luhn
// checksum. Empty input and any non-9-digit input are invalid.
func Validate(raw string) bool {
	digits := stripNonDigits(raw)
	if len(digits) != 9 {
		return false
	}
	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		// Double every second digit counting from the rightmost.
		if (len(digits)-i)%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
