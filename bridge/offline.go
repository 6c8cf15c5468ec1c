package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// PendingChange is the backend write an offline-capable object still owes.
type PendingChange int

const (
	NoPendingChange PendingChange = iota
	PendingCreate
	PendingSave
	PendingDelete
)

func (c PendingChange) String() string {
	switch c {
	case NoPendingChange:
		return "none"
	case PendingCreate:
		return "create"
	case PendingSave:
		return "save"
	case PendingDelete:
		return "delete"
	default:
		return fmt.Sprintf("PendingChange(%d)", int(c))
	}
}

// OfflineCapable is an Object that can be changed while an OfflineBridge is
// offline. The pending change must survive a round trip through the
// DatabaseAdapter, so it is usually a persisted property of the object.
type OfflineCapable interface {
	Object
	PendingChange() PendingChange
	SetPendingChange(PendingChange)
}

// DeletedObjectIdentifier names an object the backend confirmed as deleted.
type DeletedObjectIdentifier struct {
	Entity          string
	CloudIdentifier string
}

// BulkCloudConnection is a CloudConnection that can replay offline changes.
//
// clouds and objs are parallel slices. On error the returned slice holds the
// results for the objects handled before the failure, in order.
type BulkCloudConnection interface {
	CloudConnection

	// BulkCreateCloudObjects creates every cloud object and returns the backend's representations.
	BulkCreateCloudObjects(ctx context.Context, entity *EntityDescription, clouds []CloudObject, objs []Object) ([]CloudObject, error)

	// BulkSaveCloudObjects updates every cloud object and returns the backend's representations.
	BulkSaveCloudObjects(ctx context.Context, entity *EntityDescription, clouds []CloudObject, objs []Object) ([]CloudObject, error)

	// BulkDeleteCloudObjects deletes every object and returns the identifiers the backend deleted.
	BulkDeleteCloudObjects(ctx context.Context, entity *EntityDescription, clouds []CloudObject, objs []Object) ([]DeletedObjectIdentifier, error)
}

// OfflineBridge is a CloudBridge that keeps accepting changes while the
// backend is unreachable. Offline, changes to OfflineCapable objects are
// recorded locally; ReenableOnlineMode replays them through the bulk
// operations of the connection.
type OfflineBridge struct {
	*CloudBridge
	bulk BulkCloudConnection

	mu         sync.Mutex
	offline    bool
	reenabling bool
}

var _ Bridge = (*OfflineBridge)(nil)

// NewOffline creates an OfflineBridge. It starts online.
func NewOffline(conn BulkCloudConnection, db DatabaseAdapter, registry *Registry, opts ...Option) *OfflineBridge {
	return &OfflineBridge{
		CloudBridge: New(conn, db, registry, opts...),
		bulk:        conn,
	}
}

// IsOffline reports whether changes are being recorded locally.
func (b *OfflineBridge) IsOffline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offline
}

// IsReenablingOnlineMode reports whether pending changes are being replayed.
func (b *OfflineBridge) IsReenablingOnlineMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reenabling
}

// EnableOfflineMode starts recording changes locally.
func (b *OfflineBridge) EnableOfflineMode() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.offline {
		b.offline = true
		b.logger.Info("offline mode enabled")
	}
}

// ReenableOnlineMode replays the pending changes of every registered entity
// and goes back online. If a replay fails the bridge stays offline; changes
// the backend accepted before the failure are no longer pending. Changes
// recorded while the replay runs stay pending until the next call.
func (b *OfflineBridge) ReenableOnlineMode(ctx context.Context) error {
	b.mu.Lock()
	if !b.offline {
		b.mu.Unlock()
		return nil
	}
	if b.reenabling {
		b.mu.Unlock()
		return fmt.Errorf("%w: online mode is already being re-enabled", ErrOffline)
	}
	b.reenabling = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.reenabling = false
		b.mu.Unlock()
	}()

	for _, entity := range b.registry.AllEntities() {
		if err := b.replay(ctx, entity); err != nil {
			b.logger.Warn("replaying offline changes failed", "entity", entity.Name, "error", err)
			return fmt.Errorf("replay %s: %w", entity.Name, err)
		}
	}

	b.mu.Lock()
	b.offline = false
	b.mu.Unlock()

	b.logger.Info("online mode re-enabled")
	return nil
}

// Create creates obj on the backend, or records a pending create while offline.
func (b *OfflineBridge) Create(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	if !b.IsOffline() {
		return b.CloudBridge.Create(ctx, obj, userInfo)
	}
	return b.record(ctx, obj, PendingCreate)
}

// Reload fetches obj's latest representation. It fails with ErrOffline while offline.
func (b *OfflineBridge) Reload(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	if b.IsOffline() {
		return nil, fmt.Errorf("%w: cannot reload", ErrOffline)
	}
	return b.CloudBridge.Reload(ctx, obj, userInfo)
}

// Save updates obj on the backend, or records a pending save while offline.
// An object still pending creation stays pending creation.
func (b *OfflineBridge) Save(ctx context.Context, obj Object, userInfo UserInfo) (Object, error) {
	if !b.IsOffline() {
		return b.CloudBridge.Save(ctx, obj, userInfo)
	}
	return b.record(ctx, obj, PendingSave)
}

// Delete deletes obj on the backend, or records a pending delete while offline.
// An object that never reached the backend is only deleted locally.
func (b *OfflineBridge) Delete(ctx context.Context, obj Object, userInfo UserInfo) error {
	if !b.IsOffline() {
		return b.CloudBridge.Delete(ctx, obj, userInfo)
	}

	entity, oc, err := b.offlineCapable(obj)
	if err != nil {
		return err
	}
	if oc.PendingChange() == PendingCreate {
		if err := b.db.Delete(ctx, entity, obj); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete local %s: %w", entity.Name, err)
		}
		b.logger.Debug("dropped offline object", "ref", Ref(entity.Name, Identifier(entity, obj)))
		return nil
	}
	_, err = b.record(ctx, obj, PendingDelete)
	return err
}

// FetchObjects fetches from the backend, or from the local store while
// offline. Objects pending deletion are left out of offline results.
func (b *OfflineBridge) FetchObjects(ctx context.Context, entity string, predicate *Predicate, userInfo UserInfo) ([]Object, error) {
	if !b.IsOffline() {
		return b.CloudBridge.FetchObjects(ctx, entity, predicate, userInfo)
	}

	desc, ok := b.registry.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	local, err := b.db.Fetch(ctx, desc, predicate)
	if err != nil {
		return nil, fmt.Errorf("fetch local %s: %w", desc.Name, err)
	}
	objects := local[:0:0]
	for _, obj := range local {
		if oc, ok := obj.(OfflineCapable); ok && oc.PendingChange() == PendingDelete {
			continue
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (b *OfflineBridge) offlineCapable(obj Object) (*EntityDescription, OfflineCapable, error) {
	entity, err := b.registry.EntityFor(obj)
	if err != nil {
		return nil, nil, err
	}
	oc, ok := obj.(OfflineCapable)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s objects cannot be changed offline", ErrOffline, entity.Name)
	}
	return entity, oc, nil
}

// record marks obj with change and stores it locally.
func (b *OfflineBridge) record(ctx context.Context, obj Object, change PendingChange) (Object, error) {
	entity, oc, err := b.offlineCapable(obj)
	if err != nil {
		return nil, err
	}
	if change == PendingSave && oc.PendingChange() == PendingCreate {
		change = PendingCreate
	}

	oc.SetPendingChange(change)
	if err := b.db.Save(ctx, entity, obj); err != nil {
		return nil, fmt.Errorf("save local %s: %w", entity.Name, err)
	}

	b.logger.Debug("recorded offline change",
		"ref", Ref(entity.Name, Identifier(entity, obj)),
		"change", change.String(),
	)
	return obj, nil
}

// replay sends the pending changes of entity to the backend.
func (b *OfflineBridge) replay(ctx context.Context, entity *EntityDescription) error {
	local, err := b.db.Fetch(ctx, entity, nil)
	if err != nil {
		return fmt.Errorf("fetch local %s: %w", entity.Name, err)
	}

	pending := make(map[PendingChange][]OfflineCapable)
	for _, obj := range local {
		if oc, ok := obj.(OfflineCapable); ok && oc.PendingChange() != NoPendingChange {
			pending[oc.PendingChange()] = append(pending[oc.PendingChange()], oc)
		}
	}

	if err := b.replayWrites(ctx, entity, "create", pending[PendingCreate], b.bulk.BulkCreateCloudObjects); err != nil {
		return err
	}
	if err := b.replayWrites(ctx, entity, "save", pending[PendingSave], b.bulk.BulkSaveCloudObjects); err != nil {
		return err
	}
	return b.replayDeletes(ctx, entity, pending[PendingDelete])
}

type bulkWrite func(context.Context, *EntityDescription, []CloudObject, []Object) ([]CloudObject, error)

// replayWrites applies the backend's representations to the objects it
// accepted and clears their pending change.
func (b *OfflineBridge) replayWrites(ctx context.Context, entity *EntityDescription, op string, objs []OfflineCapable, send bulkWrite) error {
	if len(objs) == 0 {
		return nil
	}
	clouds, plain, err := b.cloudObjects(objs)
	if err != nil {
		return err
	}

	results, sendErr := send(ctx, entity, clouds, plain)
	if len(results) > len(objs) || (sendErr == nil && len(results) != len(objs)) {
		return fmt.Errorf("%w: bulk %s returned %d objects for %d", ErrMalformedPayload, op, len(results), len(objs))
	}

	for i, result := range results {
		obj := objs[i]
		if result == nil {
			return fmt.Errorf("%w: bulk %s returned no object", ErrMalformedPayload, op)
		}
		if err := b.transformer.Apply(obj, result); err != nil {
			return err
		}
		obj.SetPendingChange(NoPendingChange)
		if err := b.db.Save(ctx, entity, obj); err != nil {
			return fmt.Errorf("save local %s: %w", entity.Name, err)
		}
	}
	if sendErr != nil {
		return sendErr
	}

	b.logger.Debug("replayed offline changes", "entity", entity.Name, "op", op, "count", len(objs))
	return nil
}

// replayDeletes removes the objects the backend confirmed as deleted.
func (b *OfflineBridge) replayDeletes(ctx context.Context, entity *EntityDescription, objs []OfflineCapable) error {
	if len(objs) == 0 {
		return nil
	}
	clouds, plain, err := b.cloudObjects(objs)
	if err != nil {
		return err
	}

	deleted, sendErr := b.bulk.BulkDeleteCloudObjects(ctx, entity, clouds, plain)
	confirmed := make(map[string]bool, len(deleted))
	for _, d := range deleted {
		if d.Entity == entity.Name {
			confirmed[d.CloudIdentifier] = true
		}
	}

	for _, obj := range objs {
		if !confirmed[Identifier(entity, obj)] {
			continue
		}
		if err := b.db.Delete(ctx, entity, obj); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete local %s: %w", entity.Name, err)
		}
	}
	if sendErr != nil {
		return sendErr
	}

	b.logger.Debug("replayed offline deletes", "entity", entity.Name, "count", len(confirmed))
	return nil
}

func (b *OfflineBridge) cloudObjects(objs []OfflineCapable) ([]CloudObject, []Object, error) {
	clouds := make([]CloudObject, len(objs))
	plain := make([]Object, len(objs))
	for i, obj := range objs {
		cloud, err := b.transformer.CloudObject(obj)
		if err != nil {
			return nil, nil, err
		}
		clouds[i], plain[i] = cloud, obj
	}
	return clouds, plain, nil
}
