package bridge

import "fmt"

// Registry holds all known entity descriptions and their relationships.
type Registry struct {
	entities []*EntityDescription
	byName   map[string]*EntityDescription
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: []*EntityDescription{},
		byName:   make(map[string]*EntityDescription),
	}
}

// Register adds an entity description to the registry, filling defaults.
// Registering a name again replaces the earlier description.
// This should be called during startup, before the registry is shared.
func (r *Registry) Register(entity EntityDescription) *EntityDescription {
	entity.setDefaults()
	e := &entity

	if _, exists := r.byName[e.Name]; exists {
		for i, old := range r.entities {
			if old.Name == e.Name {
				r.entities[i] = e
			}
		}
	} else {
		r.entities = append(r.entities, e)
	}
	r.byName[e.Name] = e
	return e
}

// Entity returns the description registered under name.
func (r *Registry) Entity(name string) (*EntityDescription, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// EntityFor returns the description for obj's entity.
func (r *Registry) EntityFor(obj Object) (*EntityDescription, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil object", ErrUnknownEntity)
	}
	e, ok := r.byName[obj.EntityName()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, obj.EntityName())
	}
	return e, nil
}

// Relationship returns the relationship named name on entity.
func (r *Registry) Relationship(entity, name string) (RelationshipDescription, bool) {
	e, ok := r.byName[entity]
	if !ok {
		return RelationshipDescription{}, false
	}
	return e.Relationship(name)
}

// InverseOf returns the inverse of rel, looked up on its destination entity.
func (r *Registry) InverseOf(rel RelationshipDescription) (RelationshipDescription, bool) {
	if rel.Inverse == "" {
		return RelationshipDescription{}, false
	}
	return r.Relationship(rel.Destination, rel.Inverse)
}

// ChildrenOf returns all to-many relationships of an entity.
func (r *Registry) ChildrenOf(entity string) []RelationshipDescription {
	e, ok := r.byName[entity]
	if !ok {
		return nil
	}
	var children []RelationshipDescription
	for _, rel := range e.Relationships {
		if rel.ToMany {
			children = append(children, rel)
		}
	}
	return children
}

// HasChildren returns true if the entity has any to-many relationships.
func (r *Registry) HasChildren(entity string) bool {
	return len(r.ChildrenOf(entity)) > 0
}

// AllEntities returns all registered entity descriptions in registration order.
func (r *Registry) AllEntities() []*EntityDescription {
	return r.entities
}

// RelationshipPredicate reports whether p compares one of entity's relationships
// against a related object, returning the relationship and that object.
func (r *Registry) RelationshipPredicate(entity *EntityDescription, p *Predicate) (RelationshipDescription, Object, bool) {
	if p == nil {
		return RelationshipDescription{}, nil, false
	}
	rel, ok := entity.Relationship(p.Key)
	if !ok {
		return RelationshipDescription{}, nil, false
	}
	related, ok := p.Value.(Object)
	if !ok || related == nil {
		return RelationshipDescription{}, nil, false
	}
	return rel, related, true
}

// Matches evaluates p against obj of the given entity.
// A to-one relationship predicate compares the relationship's KeyPath against
// the related object's identifier; anything else compares key-path values.
func (r *Registry) Matches(entity *EntityDescription, p *Predicate, obj any) bool {
	if p == nil {
		return true
	}
	rel, related, ok := r.RelationshipPredicate(entity, p)
	if !ok || rel.ToMany || rel.KeyPath == "" {
		return p.Matches(obj)
	}
	dest, ok := r.byName[rel.Destination]
	if !ok {
		return false
	}
	v, ok := ValueForKeyPath(obj, rel.KeyPath)
	if !ok {
		return false
	}
	id := Identifier(dest, related)
	return id != "" && FormatValue(v) == id
}
