// Package prefixed_uuid provides UUID identifiers carrying a short type
// prefix, rendered as "prefix-uuid".
package prefixed_uuid

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID is a UUID tagged with a type prefix. The prefix must not
// contain a dash.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New generates a fresh PrefixedUUID with the given prefix.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

// FromString parses a "prefix-uuid" string.
func FromString(s string) (PrefixedUUID, error) {
	idx := strings.Index(s, "-")
	if idx <= 0 {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %s", s)
	}

	parsed, err := uuid.Parse(s[idx+1:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID in %q: %w", s, err)
	}
	return PrefixedUUID{Prefix: s[:idx], UUID: parsed}, nil
}

// String renders the identifier as "prefix-uuid".
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero reports whether the identifier is uninitialized.
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// MarshalJSON serializes the identifier as a JSON string.
func (p PrefixedUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses the identifier from a JSON string.
func (p *PrefixedUUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
