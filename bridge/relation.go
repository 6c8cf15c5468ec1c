package bridge

import (
	"context"
	"fmt"
)

// FetchRelated fetches the object at the other end of obj's to-one relationship.
//
// The relationship must be to-one and have a to-one inverse; anything else is a
// modeling error and panics. It returns ErrNotFound when nothing is related.
func FetchRelated[T Object](ctx context.Context, b Bridge, obj Object, relationship string, opts ...CallOption) (T, error) {
	var zero T
	rel, inverse, err := resolveRelationship(b.Registry(), obj, relationship)
	if err != nil {
		return zero, err
	}
	if rel.ToMany {
		panic(fmt.Errorf("%w: %s.%s is to-many", ErrCardinality, obj.EntityName(), rel.Name))
	}

	results, err := b.FetchObjects(ctx, rel.Destination, Equal(inverse.Name, obj), userInfo(opts))
	if err != nil {
		return zero, err
	}
	objects, err := castAll[T](results)
	if err != nil {
		return zero, err
	}
	if len(objects) == 0 {
		return zero, fmt.Errorf("%w: %s.%s", ErrNotFound, obj.EntityName(), rel.Name)
	}
	return objects[0], nil
}

// FetchRelatedObjects fetches the objects related to obj through relationship.
// The relationship's inverse must be to-one.
func FetchRelatedObjects[T Object](ctx context.Context, b Bridge, obj Object, relationship string, opts ...CallOption) ([]T, error) {
	rel, inverse, err := resolveRelationship(b.Registry(), obj, relationship)
	if err != nil {
		return nil, err
	}

	results, err := b.FetchObjects(ctx, rel.Destination, Equal(inverse.Name, obj), userInfo(opts))
	if err != nil {
		return nil, err
	}
	return castAll[T](results)
}

func resolveRelationship(registry *Registry, obj Object, name string) (RelationshipDescription, RelationshipDescription, error) {
	entity, err := registry.EntityFor(obj)
	if err != nil {
		return RelationshipDescription{}, RelationshipDescription{}, err
	}
	rel, ok := entity.Relationship(name)
	if !ok {
		return RelationshipDescription{}, RelationshipDescription{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, entity.Name, name)
	}

	inverse, ok := registry.InverseOf(rel)
	if !ok {
		panic(fmt.Errorf("%w: %s.%s has no inverse", ErrInverseCardinality, entity.Name, rel.Name))
	}
	if inverse.ToMany {
		panic(fmt.Errorf("%w: inverse %s.%s of %s.%s is to-many",
			ErrInverseCardinality, rel.Destination, inverse.Name, entity.Name, rel.Name))
	}
	return rel, inverse, nil
}
