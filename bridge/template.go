package bridge

import (
	"net/url"
	"strings"
)

// Substitute replaces the ":"-prefixed segments of path with property values of obj.
//
// A placeholder may be dotted (":author.id"); each name is translated from its
// cloud form through mapping before the key path is resolved. Values are
// escaped as a single path segment; absent values substitute as the empty
// string. A nil mapping means IdentityMapping.
//
//	Substitute(post, "/posts/:id/comments", nil) // "/posts/42/comments"
func Substitute(obj any, path string, mapping PropertyMapping) string {
	if mapping == nil {
		mapping = IdentityMapping{}
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if !strings.HasPrefix(segment, ":") {
			continue
		}
		keys := strings.Split(segment[1:], ".")
		for j, key := range keys {
			keys[j] = mapping.PersistentKey(key)
		}
		value, _ := ValueForKeyPath(obj, strings.Join(keys, "."))
		segments[i] = url.PathEscape(FormatValue(value))
	}
	return strings.Join(segments, "/")
}
