// Package phone normalises client and supplier phone numbers to the
// canonical 12-digit 254XXXXXXXXX form used as their natural key.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalid is returned for numbers that cannot be normalised.
var ErrInvalid = errors.New("invalid phone number")

const (
	countryCode = "254"
	length      = 12
)

// Normalize strips formatting and rewrites local prefixes to the
// international form. "0712 345 678", "+254712345678" and "712345678" all
// normalise to "254712345678".
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return "", ErrInvalid
	case strings.HasPrefix(digits, countryCode):
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case strings.HasPrefix(digits, "7"), strings.HasPrefix(digits, "1"):
		digits = countryCode + digits
	default:
		return "", ErrInvalid
	}

	if len(digits) != length {
		return "", ErrInvalid
	}
	return digits, nil
}
