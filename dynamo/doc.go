// Package dynamo provides a bridge.DatabaseAdapter backed by DynamoDB.
//
// Every registered entity is stored in its own table (TablePrefix + TableName)
// with a string partition key "pk" holding the object's identifier. The
// adapter maintains these fields itself:
//
//	entity_ref   "comment#7"
//	parent_refs  ["post#42"]
//	version      incremented on every write
//	created_at   set on first write
//	updated_at   set on every write
//	ttl          set when the object is deleted
//
// # Relationships
//
// To-one relationships with a KeyPath are mirrored into a relationship table
// (pk = parentRef#shard, sort key child_ref). Fetching the children of a
// parent queries that table instead of scanning:
//
//	comments, err := adapter.Fetch(ctx, commentEntity, bridge.Equal("post", post))
//
// # Deletes
//
// Delete sets the item's TTL instead of removing it. Deleted items are
// invisible to Lookup and Fetch. Relationships with the [bridge.Deny] rule make
// Delete fail with [ErrHasChildren] while active children exist. Relationships
// with the [bridge.Cascade] rule are followed by the stream package, which
// reacts to TTL changes on the table stream. Saving an object whose item is
// deleted but not yet expired by DynamoDB re-creates it.
//
// # Configuration
//
// Use [DefaultConfig] for small datasets (NumShards=1, single queries).
// Increase NumShards for higher throughput:
//
//	cfg := dynamo.DefaultConfig()
//	cfg.NumShards = 16
//
// # Errors
//
//   - [bridge.ErrNotFound] - item doesn't exist or is deleted
//   - [ErrParentNotFound] - parent validation failed
//   - [ErrHasChildren] - cannot delete an item with Deny children
//   - [ErrConcurrentModification] - optimistic lock failed
package dynamo
