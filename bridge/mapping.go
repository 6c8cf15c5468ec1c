package bridge

import (
	"fmt"
	"strings"
	"unicode"
)

// PropertyMapping translates between wire-facing (cloud) keys and local property names.
type PropertyMapping interface {
	// PersistentKey converts a cloud key (e.g., "author_id") into a local property name.
	PersistentKey(cloudKey string) string

	// CloudKey converts a local property name (e.g., "authorId") into a cloud key.
	CloudKey(persistentKey string) string
}

// IdentityMapping uses the same names on both sides.
type IdentityMapping struct{}

func (IdentityMapping) PersistentKey(cloudKey string) string { return cloudKey }
func (IdentityMapping) CloudKey(persistentKey string) string { return persistentKey }

// UnderscoredMapping maps snake_case cloud keys to camelCase local names.
type UnderscoredMapping struct{}

// PersistentKey converts "author_id" into "authorId".
func (UnderscoredMapping) PersistentKey(cloudKey string) string {
	var b strings.Builder
	first := true
	for _, part := range strings.Split(cloudKey, "_") {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// CloudKey converts "authorId" into "author_id". Acronym runs stay one token:
// "HTTPCode" becomes "http_code" and "userID" becomes "user_id".
func (UnderscoredMapping) CloudKey(persistentKey string) string {
	runes := []rune(persistentKey)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// MappingByName returns the mapping configured as "identity" or "underscored".
func MappingByName(name string) (PropertyMapping, error) {
	switch strings.ToLower(name) {
	case "", "identity":
		return IdentityMapping{}, nil
	case "underscored", "snake_case":
		return UnderscoredMapping{}, nil
	default:
		return nil, fmt.Errorf("cloudbridge: unknown property mapping %q", name)
	}
}
