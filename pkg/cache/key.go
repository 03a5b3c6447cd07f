package cache

import (
	"strings"
)

// KeyPrefix is the leading segment of every key written to a shared backend.
const KeyPrefix = "datafetch"

// Key identifies a cache slot inside a namespace.
type Key struct {
	// Namespace is the cache namespace opened by the caller
	Namespace string

	// Name is the request key (defaults to the request URL)
	Name string
}

// String generates a deterministic backend key.
// Format: datafetch:namespace:name
//
// Example:
//
//	datafetch:datafetch:https://swapi.dev/api/people/2
func (k Key) String() string {
	parts := []string{KeyPrefix}

	if ns := strings.Trim(k.Namespace, ":"); ns != "" {
		parts = append(parts, ns)
	}

	// The name is kept verbatim: URLs may legitimately contain ':'.
	parts = append(parts, k.Name)

	return strings.Join(parts, ":")
}
