package bridge

// Object is a model object persisted locally and mirrored to a backend.
type Object interface {
	// EntityName returns the registered entity name (e.g., "post").
	// It is called on zero values and must not depend on receiver state.
	EntityName() string
}

// Valuer is implemented by types that expose their properties by local name.
type Valuer interface {
	// Value returns the property named key, and whether it exists.
	Value(key string) (any, bool)
}

// Patcher is implemented by types that update themselves from a decoded JSON dictionary.
type Patcher interface {
	Patch(dict map[string]any) error
}

// Accessors maps local property names to typed accessor functions.
//
//	var postAccessors = bridge.Accessors[*Post]{
//	    "id":    func(p *Post) any { return p.ID },
//	    "title": func(p *Post) any { return p.Title },
//	}
//
//	func (p *Post) Value(key string) (any, bool) { return postAccessors.Lookup(p, key) }
type Accessors[T any] map[string]func(T) any

// Lookup resolves key against v.
func (a Accessors[T]) Lookup(v T, key string) (any, bool) {
	fn, ok := a[key]
	if !ok {
		return nil, false
	}
	return fn(v), true
}

// CloudObject is a decoded JSON dictionary exchanged with the backend.
type CloudObject = map[string]any

// UserInfo carries contextual metadata for a single operation.
type UserInfo map[string]any

// URLOverrideKey is the UserInfo key holding a path that replaces the connection's computed path.
const URLOverrideKey = "cloudbridge.url_override"

// URLOverride returns the path override, if one is set.
func (u UserInfo) URLOverride() (string, bool) {
	path, ok := u[URLOverrideKey].(string)
	return path, ok && path != ""
}
