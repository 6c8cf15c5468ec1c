// Package stream provides DynamoDB Streams handlers for cascade deletes of
// objects stored by the dynamo adapter.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/dynamo"
)

// Store is the part of *dynamo.Adapter the handler needs.
type Store interface {
	QueryAllChildren(ctx context.Context, parentRef string) ([]dynamo.ChildRef, error)
	SetTTLByKey(ctx context.Context, table string, key dynamo.PK, ttl int64) error
	SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error
}

var _ Store = (*dynamo.Adapter)(nil)

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store    Store
	registry *bridge.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
// With a nil registry every child is cascaded.
func NewHandler(s Store, registry *bridge.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		registry: registry,
		logger:   logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to propagate TTL to children.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only process MODIFY events where TTL was added
	if record.EventName != "MODIFY" {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only process when TTL is newly set (was absent/0, now present)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	if entityRef == "" {
		return nil
	}
	parentRefs := getStringListAttr(record.Change.NewImage, "parent_refs")

	h.logger.Info("processing cascade delete",
		"entityRef", entityRef,
		"parentRefs", parentRefs,
		"ttl", newTTL,
	)

	// 1. Query all children (including already-deleted ones - idempotent)
	children, err := h.store.QueryAllChildren(ctx, entityRef)
	if err != nil {
		return fmt.Errorf("query children: %w", err)
	}

	h.logger.Info("found children",
		"entityRef", entityRef,
		"childCount", len(children),
	)

	// 2. Cascade children get the same TTL (triggers their cascade via stream);
	//    the others only lose their relationship record.
	cascaded := 0
	for _, child := range children {
		if h.cascades(entityRef, child.Entity) {
			cascaded++
			if err := h.store.SetTTLByKey(ctx, child.TableName, child.Key, newTTL); err != nil {
				h.logger.Warn("failed to set TTL on child",
					"child", child.Ref,
					"error", err,
				)
				// Continue - idempotent, will retry
			}
			continue
		}
		if err := h.store.SetRelationshipTTL(ctx, child.Ref, entityRef, newTTL); err != nil {
			h.logger.Warn("failed to set relationship TTL",
				"child", child.Ref,
				"parent", entityRef,
				"error", err,
			)
		}
	}

	// 3. Set TTL on this entity's relationship records (as a child)
	//    Uses parent_refs from stream record - no lookup needed!
	for _, parentRef := range parentRefs {
		if err := h.store.SetRelationshipTTL(ctx, entityRef, parentRef, newTTL); err != nil {
			h.logger.Warn("failed to set relationship TTL",
				"entity", entityRef,
				"parent", parentRef,
				"error", err,
			)
		}
	}

	h.logger.Info("cascade delete completed",
		"entityRef", entityRef,
		"childrenProcessed", len(children),
		"childrenCascaded", cascaded,
	)

	return nil
}

// cascades reports whether deleting parentRef deletes children of childEntity.
func (h *Handler) cascades(parentRef, childEntity string) bool {
	if h.registry == nil {
		return true
	}
	parentEntity, _, _ := strings.Cut(parentRef, "#")
	for _, rel := range h.registry.ChildrenOf(parentEntity) {
		if rel.Destination == childEntity && rel.DeleteRule == bridge.Cascade {
			return true
		}
	}
	return false
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getStringListAttr extracts a string list attribute from a DynamoDB stream image.
func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeList {
			var result []string
			for _, item := range v.List() {
				if item.DataType() == events.DataTypeString {
					result = append(result, item.String())
				}
			}
			return result
		}
	}
	return nil
}

// ConvertStreamKey converts a DynamoDB stream key to a dynamo.PK.
// Use this when you need to convert keys from stream records to adapter operations.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) dynamo.PK {
	result := make(dynamo.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
