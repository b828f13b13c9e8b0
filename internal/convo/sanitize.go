package convo

import (
	"regexp"
	"strings"
)

// emailPattern is a generic email-shape check. Deliverability is proven by
// the order lookup, not by the pattern.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]{2,}$`)

// orderIDPattern accepts purely numeric order identifiers.
var orderIDPattern = regexp.MustCompile(`^[0-9]+$`)

// sanitizeInput trims whitespace and strips control characters so the value
// is safe to store and echo back.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// SanitizeEmail normalizes a candidate email. Returns the cleaned value and
// whether it has a valid email shape.
func SanitizeEmail(input string) (string, bool) {
	email := strings.ToLower(sanitizeInput(input))
	return email, emailPattern.MatchString(email)
}

// SanitizeOrderID normalizes a candidate order identifier, tolerating a
// leading "#" as pasted from order confirmation emails. Returns the cleaned
// value and whether it is purely numeric.
func SanitizeOrderID(input string) (string, bool) {
	id := sanitizeInput(input)
	id = strings.TrimPrefix(id, "#")
	id = strings.ReplaceAll(id, " ", "")
	return id, orderIDPattern.MatchString(id)
}
