// Package memdb provides an in-memory bridge.DatabaseAdapter.
package memdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacentio/cloudbridge/bridge"
)

// DB keeps objects in memory, per entity, in insertion order.
type DB struct {
	mu       sync.RWMutex
	registry *bridge.Registry
	tables   map[string]*table
}

type table struct {
	order   []string
	objects map[string]bridge.Object
}

var _ bridge.DatabaseAdapter = (*DB)(nil)

// New creates an empty DB. The registry resolves relationship predicates.
func New(registry *bridge.Registry) *DB {
	if registry == nil {
		registry = bridge.NewRegistry()
	}
	return &DB{
		registry: registry,
		tables:   make(map[string]*table),
	}
}

// Lookup returns the object of entity with the given identifier.
func (d *DB) Lookup(_ context.Context, entity *bridge.EntityDescription, id string) (bridge.Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[entity.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, bridge.Ref(entity.Name, id))
	}
	obj, ok := t.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, bridge.Ref(entity.Name, id))
	}
	return obj, nil
}

// Fetch returns the objects of entity matching predicate.
func (d *DB) Fetch(_ context.Context, entity *bridge.EntityDescription, predicate *bridge.Predicate) ([]bridge.Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[entity.Name]
	if !ok {
		return nil, nil
	}
	var out []bridge.Object
	for _, id := range t.order {
		obj := t.objects[id]
		if d.registry.Matches(entity, predicate, obj) {
			out = append(out, obj)
		}
	}
	return out, nil
}

// Save inserts or replaces obj under its identifier.
func (d *DB) Save(_ context.Context, entity *bridge.EntityDescription, obj bridge.Object) error {
	id := bridge.Identifier(entity, obj)
	if id == "" {
		return fmt.Errorf("%w: %s", bridge.ErrMissingIdentifier, entity.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[entity.Name]
	if !ok {
		t = &table{objects: make(map[string]bridge.Object)}
		d.tables[entity.Name] = t
	}
	if _, exists := t.objects[id]; !exists {
		t.order = append(t.order, id)
	}
	t.objects[id] = obj
	return nil
}

// Delete removes obj.
func (d *DB) Delete(_ context.Context, entity *bridge.EntityDescription, obj bridge.Object) error {
	id := bridge.Identifier(entity, obj)

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[entity.Name]
	if !ok {
		return fmt.Errorf("%w: %s", bridge.ErrNotFound, bridge.Ref(entity.Name, id))
	}
	if _, exists := t.objects[id]; !exists {
		return fmt.Errorf("%w: %s", bridge.ErrNotFound, bridge.Ref(entity.Name, id))
	}
	delete(t.objects, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of objects stored for entity.
func (d *DB) Len(entity string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if t, ok := d.tables[entity]; ok {
		return len(t.objects)
	}
	return 0
}
