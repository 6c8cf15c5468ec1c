package dynamo

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyAttr is the partition key attribute of every entity table. It holds the
// object's identifier as a string.
const KeyAttr = "pk"

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Key returns the primary key of the object with the given identifier.
func Key(id string) PK {
	return PK{KeyAttr: &types.AttributeValueMemberS{Value: id}}
}

// managedFields are written by the adapter and never taken from object properties.
var managedFields = map[string]bool{
	KeyAttr:       true,
	"entity_ref":  true,
	"parent_refs": true,
	"version":     true,
	"created_at":  true,
	"updated_at":  true,
	"ttl":         true,
}

// Item represents a retrieved DynamoDB item with common fields.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// Version counts writes to the item.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityRef is the type-qualified entity reference (e.g., "comment#1").
	EntityRef string

	// ParentRefs are the references of the objects the item's to-one relationships point at.
	ParentRefs []string
}

// ChildRef represents a reference to a child entity in the relationship table.
type ChildRef struct {
	// Ref is the child's entity reference.
	Ref string

	// Entity is the child's entity name.
	Entity string

	// TableName is the DynamoDB table containing the child.
	TableName string

	// Key is the primary key to locate the child.
	Key PK

	// ShardPK is the relationship table partition key (for TTL updates).
	ShardPK string

	// TTL is the relationship record's TTL, 0 if unset.
	TTL int64
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_refs"].(*types.AttributeValueMemberL); ok {
		_ = attributevalue.UnmarshalList(v.Value, &item.ParentRefs)
	}

	return item
}

// unmarshalChildRef converts a relationship item to a ChildRef.
func unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}

	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["child_entity"].(*types.AttributeValueMemberS); ok {
		ref.Entity = v.Value
	}
	if v, ok := item["child_table"].(*types.AttributeValueMemberS); ok {
		ref.TableName = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}
	ref.TTL, _ = ttlOf(item)

	return ref
}

// properties decodes an item into object properties, dropping managed fields.
func properties(raw map[string]types.AttributeValue) (map[string]any, error) {
	props := make(map[string]any, len(raw))
	if err := attributevalue.UnmarshalMap(raw, &props); err != nil {
		return nil, err
	}
	for k := range managedFields {
		delete(props, k)
	}
	return props, nil
}
