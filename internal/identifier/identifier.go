// Package identifier validates archive item identifiers. Identifiers are
// opaque strings that join search results, fetch requests and cache entries,
// so every component applies the same pattern.
package identifier

import (
	"fmt"
	"regexp"
)

// pattern: starts alphanumeric, then alphanumeric/hyphen/underscore, at
// least three characters total.
var pattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,}$`)

// Valid reports whether id is a well-formed item identifier.
func Valid(id string) bool {
	return pattern.MatchString(id)
}

// Validate returns a descriptive error for malformed identifiers.
func Validate(id string) error {
	if !Valid(id) {
		return fmt.Errorf("malformed identifier %q: must start alphanumeric, contain only [A-Za-z0-9_-] and be at least 3 characters", id)
	}
	return nil
}
