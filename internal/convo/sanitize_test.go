package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"plain", "a@b.com", "a@b.com", true},
		{"uppercase lowered", "User@Example.COM", "user@example.com", true},
		{"surrounding whitespace", "  a@b.com\n", "a@b.com", true},
		{"plus tag", "user+tag@example.co.uk", "user+tag@example.co.uk", true},
		{"missing at", "not-an-email", "not-an-email", false},
		{"missing tld", "a@b", "a@b", false},
		{"short tld", "a@b.c", "a@b.c", false},
		{"embedded space", "a b@c.com", "a b@c.com", false},
		{"empty", "", "", false},
		{"control chars stripped", "a@b.com\x00", "a@b.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := SanitizeEmail(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestSanitizeOrderID(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"plain digits", "9001", "9001", true},
		{"leading hash", "#9001", "9001", true},
		{"surrounding whitespace", " 9001 ", "9001", true},
		{"internal spaces collapsed", "9 001", "9001", true},
		{"letters rejected", "ninety", "ninety", false},
		{"mixed rejected", "90a1", "90a1", false},
		{"negative rejected", "-9001", "-9001", false},
		{"empty", "", "", false},
		{"hash only", "#", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := SanitizeOrderID(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, valid)
		})
	}
}
