package bridge

import "fmt"

// DeleteRule controls what happens to related objects when the source object is deleted.
type DeleteRule int

const (
	// Nullify leaves related objects in place.
	Nullify DeleteRule = iota

	// Cascade deletes related objects together with the source.
	Cascade

	// Deny refuses deletion while related objects exist.
	Deny
)

func (r DeleteRule) String() string {
	switch r {
	case Nullify:
		return "nullify"
	case Cascade:
		return "cascade"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("DeleteRule(%d)", int(r))
	}
}

// RelationshipDescription describes a named association from one entity to another.
type RelationshipDescription struct {
	// Name is the relationship name on the source entity (e.g., "comments").
	Name string

	// Destination is the entity name of the related objects (e.g., "comment").
	Destination string

	// ToMany reports whether the relationship holds a collection.
	ToMany bool

	// Inverse is the name of the inverse relationship on the destination entity.
	Inverse string

	// KeyPath is the local property holding the destination identifier.
	// Only meaningful for to-one relationships (e.g., "postId").
	KeyPath string

	// RestBaseURL is the path template used to fetch the relationship remotely
	// (e.g., "/posts/:id/comments"), substituted with the source object.
	RestBaseURL string

	// DeleteRule applies to destination objects when a source object is deleted.
	DeleteRule DeleteRule
}

// EntityDescription describes a persisted entity type.
type EntityDescription struct {
	// Name is the entity name (e.g., "post").
	Name string

	// RestBaseURL is the collection path (e.g., "/posts"). It may contain placeholders.
	RestBaseURL string

	// Identifier is the local property holding the unique identifier.
	// Default: "id"
	Identifier string

	// TableName is the local store table for this entity.
	// Default: Name + "s"
	TableName string

	// New returns a new, empty instance of the entity.
	New func() Object

	// Relationships lists the entity's relationships.
	Relationships []RelationshipDescription
}

// Relationship returns the relationship with the given name.
func (e *EntityDescription) Relationship(name string) (RelationshipDescription, bool) {
	for _, rel := range e.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}
	return RelationshipDescription{}, false
}

// NewObject creates an empty instance through the entity constructor.
func (e *EntityDescription) NewObject() (Object, error) {
	if e.New == nil {
		return nil, fmt.Errorf("%w: %s has no constructor", ErrUnknownEntity, e.Name)
	}
	return e.New(), nil
}

func (e *EntityDescription) setDefaults() {
	if e.Identifier == "" {
		e.Identifier = "id"
	}
	if e.TableName == "" {
		e.TableName = e.Name + "s"
	}
}

// Ref returns the type-qualified reference for an entity instance (e.g., "post#42").
func Ref(entity, id string) string {
	return entity + "#" + id
}

// Identifier returns obj's identifier as a string, or "" when unset.
func Identifier(entity *EntityDescription, obj any) string {
	v, ok := ValueForKeyPath(obj, entity.Identifier)
	if !ok {
		return ""
	}
	return FormatValue(v)
}
