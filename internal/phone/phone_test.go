package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"254712345678":     "254712345678",
		"+254 712 345 678": "254712345678",
		"0712-345-678":     "254712345678",
		"712345678":        "254712345678",
		"110345678":        "254110345678",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "555-1234", "07123", "25471234567899"} {
		if _, err := Normalize(in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Normalize(%q) expected ErrInvalid, got %v", in, err)
		}
	}
}
