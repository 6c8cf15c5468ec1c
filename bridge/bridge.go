package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CloudConnection handles all communication with a specific backend.
type CloudConnection interface {
	// FetchCloudObjects fetches the cloud objects of entity matching predicate.
	FetchCloudObjects(ctx context.Context, entity *EntityDescription, predicate *Predicate, userInfo UserInfo) ([]CloudObject, error)

	// CreateCloudObject creates cloud on the backend and returns the backend's representation.
	CreateCloudObject(ctx context.Context, entity *EntityDescription, cloud CloudObject, obj Object, userInfo UserInfo) (CloudObject, error)

	// LatestCloudObject returns the backend's current representation of obj.
	LatestCloudObject(ctx context.Context, entity *EntityDescription, obj Object, userInfo UserInfo) (CloudObject, error)

	// SaveCloudObject updates cloud on the backend and returns the backend's representation.
	SaveCloudObject(ctx context.Context, entity *EntityDescription, cloud CloudObject, obj Object, userInfo UserInfo) (CloudObject, error)

	// DeleteCloudObject deletes obj on the backend.
	DeleteCloudObject(ctx context.Context, entity *EntityDescription, cloud CloudObject, obj Object, userInfo UserInfo) error
}

// DatabaseAdapter is the local persistence store behind a CloudBridge.
type DatabaseAdapter interface {
	// Lookup returns the object of entity with the given identifier, or ErrNotFound.
	Lookup(ctx context.Context, entity *EntityDescription, id string) (Object, error)

	// Fetch returns all objects of entity matching predicate.
	Fetch(ctx context.Context, entity *EntityDescription, predicate *Predicate) ([]Object, error)

	// Save inserts or updates obj.
	Save(ctx context.Context, entity *EntityDescription, obj Object) error

	// Delete removes obj.
	Delete(ctx context.Context, entity *EntityDescription, obj Object) error
}

// Bridge performs CRUD operations for persistent objects against a backend.
type Bridge interface {
	Registry() *Registry
	Create(ctx context.Context, obj Object, userInfo UserInfo) (Object, error)
	Reload(ctx context.Context, obj Object, userInfo UserInfo) (Object, error)
	Save(ctx context.Context, obj Object, userInfo UserInfo) (Object, error)
	Delete(ctx context.Context, obj Object, userInfo UserInfo) error
	FetchObjects(ctx context.Context, entity string, predicate *Predicate, userInfo UserInfo) ([]Object, error)
}

// CloudBridge bridges a local DatabaseAdapter and a CloudConnection.
type CloudBridge struct {
	conn        CloudConnection
	db          DatabaseAdapter
	registry    *Registry
	transformer Transformer
	logger      *slog.Logger
}

var _ Bridge = (*CloudBridge)(nil)

// Option configures a CloudBridge.
type Option func(*CloudBridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *CloudBridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMapping sets the property mapping used to build cloud objects.
func WithMapping(mapping PropertyMapping) Option {
	return func(b *CloudBridge) {
		b.transformer.Mapping = mapping
	}
}

// New creates a CloudBridge.
func New(conn CloudConnection, db DatabaseAdapter, registry *Registry, opts ...Option) *CloudBridge {
	if registry == nil {
		registry = NewRegistry()
	}
	b := &CloudBridge{
		conn:     conn,
		db:       db,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the entity registry.
func (b *CloudBridge) Registry() *Registry {
	return b.registry
}

// Connection returns the cloud connection.
func (b *CloudBridge) Connection() CloudConnection {
	return b.conn
}

// Database returns the local database adapter.
func (b *CloudBridge) Database() DatabaseAdapter {
	return b.db
}

// FetchObjects fetches objects of entity from the backend and stores them locally.
// When predicate compares a relationship, local objects matching it that the
// backend no longer returns are deleted locally.
func (b *CloudBridge) FetchObjects(ctx context.Context, entity string, predicate *Predicate, userInfo UserInfo) ([]Object, error) {
	desc, ok := b.registry.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	clouds, err := b.conn.FetchCloudObjects(ctx, desc, predicate, userInfo)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(clouds))
	seen := make(map[string]bool, len(clouds))
	for _, cloud := range clouds {
		obj, err := b.persistentObjectFromCloudObject(ctx, desc, cloud)
		if err != nil {
			return nil, err
		}
		seen[Identifier(desc, obj)] = true
		objects = append(objects, obj)
	}

	if _, _, ok := b.registry.RelationshipPredicate(desc, predicate); ok {
		local, err := b.db.Fetch(ctx, desc, predicate)
		if err != nil {
			return nil, fmt.Errorf("fetch local %s: %w", desc.Name, err)
		}
		for _, obj := range local {
			if seen[Identifier(desc, obj)] {
				continue
			}
			if err := b.db.Delete(ctx, desc, obj); err != nil && !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("delete stale %s: %w", desc.Name, err)
			}
		}
	}

	b.logger.Debug("fetched objects",
		"entity", desc.Name,
		"predicate", predicate.String(),
		"count", len(objects),
	)
	return objects, nil
}

// Create creates obj on the backend and stores the backend's representation locally.
func (b *CloudBridge) Create(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	return b.roundTrip(ctx, "create", obj, func(entity *EntityDescription, cloud CloudObject) (CloudObject, error) {
		return b.conn.CreateCloudObject(ctx, entity, cloud, obj, userInfo)
	})
}

// Reload replaces obj's properties with the backend's current representation.
func (b *CloudBridge) Reload(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	return b.roundTrip(ctx, "reload", obj, func(entity *EntityDescription, _ CloudObject) (CloudObject, error) {
		return b.conn.LatestCloudObject(ctx, entity, obj, userInfo)
	})
}

// Save updates obj on the backend and stores the backend's representation locally.
func (b *CloudBridge) Save(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	return b.roundTrip(ctx, "save", obj, func(entity *EntityDescription, cloud CloudObject) (CloudObject, error) {
		return b.conn.SaveCloudObject(ctx, entity, cloud, obj, userInfo)
	})
}

// Delete deletes obj on the backend, then locally.
func (b *CloudBridge) Delete(ctx context.Context, obj Object, userInfo UserInfo) error {
	entity, err := b.registry.EntityFor(obj)
	if err != nil {
		return err
	}
	cloud, err := b.transformer.CloudObject(obj)
	if err != nil {
		return err
	}

	if err := b.conn.DeleteCloudObject(ctx, entity, cloud, obj, userInfo); err != nil {
		return err
	}
	if err := b.db.Delete(ctx, entity, obj); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete local %s: %w", entity.Name, err)
	}

	b.logger.Debug("deleted object", "ref", Ref(entity.Name, Identifier(entity, obj)))
	return nil
}

// roundTrip sends obj through call and applies the returned cloud object to obj.
func (b *CloudBridge) roundTrip(ctx context.Context, op string, obj Object, call func(*EntityDescription, CloudObject) (CloudObject, error)) (Object, error) {
	entity, err := b.registry.EntityFor(obj)
	if err != nil {
		return nil, err
	}
	cloud, err := b.transformer.CloudObject(obj)
	if err != nil {
		return nil, err
	}

	result, err := call(entity, cloud)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s returned no object", ErrMalformedPayload, op)
	}

	if err := b.transformer.Apply(obj, result); err != nil {
		return nil, err
	}
	if err := b.db.Save(ctx, entity, obj); err != nil {
		return nil, fmt.Errorf("save local %s: %w", entity.Name, err)
	}

	b.logger.Debug("object "+op+"d",
		"ref", Ref(entity.Name, Identifier(entity, obj)),
	)
	return obj, nil
}

// persistentObjectFromCloudObject finds or creates the local object for cloud and updates it.
func (b *CloudBridge) persistentObjectFromCloudObject(ctx context.Context, entity *EntityDescription, cloud CloudObject) (Object, error) {
	id, ok := b.transformer.CloudIdentifier(entity, cloud)
	if !ok {
		return nil, fmt.Errorf("%w: %s cloud object", ErrMissingIdentifier, entity.Name)
	}

	obj, err := b.db.Lookup(ctx, entity, id)
	if errors.Is(err, ErrNotFound) {
		obj, err = entity.NewObject()
	}
	if err != nil {
		return nil, err
	}

	if err := b.transformer.Apply(obj, cloud); err != nil {
		return nil, err
	}
	if err := b.db.Save(ctx, entity, obj); err != nil {
		return nil, fmt.Errorf("save local %s: %w", entity.Name, err)
	}
	return obj, nil
}
