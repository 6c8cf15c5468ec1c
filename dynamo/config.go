package dynamo

import "github.com/jacentio/cloudbridge/internal/shard"

// DefaultRelationshipTable is the relationship table used when none is configured.
const DefaultRelationshipTable = "cloudbridge_relationships"

// Config holds configuration for the Adapter.
type Config struct {
	// RelationshipTable is the name of the relationship table.
	// Default: "cloudbridge_relationships"
	RelationshipTable string

	// TablePrefix is prepended to every entity's TableName (e.g., "prod_").
	TablePrefix string

	// NumShards is the number of shards for the relationship table.
	// Higher values increase write throughput but require more parallel queries.
	// Default: 1 (no sharding, single query)
	// Max: 256
	//
	// Examples:
	//   - NumShards=1:   1,000 writes/sec,   3,000 reads/sec per parent
	//   - NumShards=16:  16,000 writes/sec,  48,000 reads/sec per parent
	NumShards int

	// ValidateParents makes Save fail with ErrParentNotFound when a to-one
	// relationship points at a missing or deleted item.
	ValidateParents bool
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		RelationshipTable: DefaultRelationshipTable,
		NumShards:         1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.RelationshipTable == "" {
		c.RelationshipTable = DefaultRelationshipTable
	}
	c.NumShards = shard.Count(c.NumShards)
}
