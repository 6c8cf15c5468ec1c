// Package shard provides shard key generation for the relationship table.
package shard

import (
	"fmt"
	"hash/fnv"
)

// MaxShards is the largest supported shard count.
const MaxShards = 256

// Count clamps numShards into [1, MaxShards].
func Count(numShards int) int {
	if numShards < 1 {
		return 1
	}
	if numShards > MaxShards {
		return MaxShards
	}
	return numShards
}

// PK returns the partition key of one shard of parentRef.
func PK(parentRef string, shardNum int) string {
	return fmt.Sprintf("%s#%02x", parentRef, shardNum)
}

// All returns the partition keys of every shard of parentRef.
func All(parentRef string, numShards int) []string {
	n := Count(numShards)
	pks := make([]string, n)
	for i := range pks {
		pks[i] = PK(parentRef, i)
	}
	return pks
}

// RelationshipPK computes the sharded partition key for a relationship record.
// With numShards=1, all records go to shard "00".
// With numShards>1, records are distributed across shards based on childRef hash.
func RelationshipPK(parentRef, childRef string, numShards int) string {
	n := Count(numShards)
	if n == 1 {
		return PK(parentRef, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childRef))
	return PK(parentRef, int(h.Sum32()%uint32(n)))
}
