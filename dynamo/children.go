package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/internal/shard"
)

// SetTTL marks an item for deletion by setting its TTL.
// This also increments the version to fail concurrent saves.
// A missing item yields bridge.ErrNotFound; an item that already has a TTL is left alone.
func (a *Adapter) SetTTL(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = if_not_exists(#version, :zero) + :one"),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl":  &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if condErr.Item == nil {
			return bridge.ErrNotFound
		}
		// Already has TTL (already deleted)
		return nil
	}
	return err
}

// HasActiveChildren checks if an entity has any active (non-deleted) children.
// With childEntities, only children of those entities count.
func (a *Adapter) HasActiveChildren(ctx context.Context, entityRef string, childEntities ...string) (bool, error) {
	now := time.Now().Unix()
	shards := shard.All(entityRef, a.config.NumShards)

	// Fast path for single shard (default)
	if len(shards) == 1 {
		return a.hasActiveChildrenInShard(ctx, shards[0], childEntities, now)
	}

	// Multi-shard fan-out with early cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan bool, 1)
	errs := make(chan error, len(shards))
	var wg sync.WaitGroup

	for _, shardPK := range shards {
		wg.Add(1)
		go func(shardPK string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
			}

			ok, err := a.hasActiveChildrenInShard(ctx, shardPK, childEntities, now)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				select {
				case found <- true:
					cancel()
				default:
				}
			}
		}(shardPK)
	}

	go func() {
		wg.Wait()
		close(found)
		close(errs)
	}()

	if <-found {
		return true, nil
	}

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}

	return false, nil
}

// hasActiveChildrenInShard pages through one shard until an active child turns up.
// No Limit is set: DynamoDB applies it before the filter.
func (a *Adapter) hasActiveChildrenInShard(ctx context.Context, shardPK string, childEntities []string, now int64) (bool, error) {
	filterExpr := TTLFilterExpr()
	exprNames := map[string]string{"#ttl": "ttl"}
	exprValues := map[string]types.AttributeValue{
		":pk":  &types.AttributeValueMemberS{Value: shardPK},
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
	}
	if len(childEntities) > 0 {
		placeholders := make([]string, len(childEntities))
		for i, e := range childEntities {
			placeholders[i] = fmt.Sprintf(":entity%d", i)
			exprValues[placeholders[i]] = &types.AttributeValueMemberS{Value: e}
		}
		exprNames["#child_entity"] = "child_entity"
		filterExpr = fmt.Sprintf("(%s) AND #child_entity IN (%s)", filterExpr, strings.Join(placeholders, ", "))
	}

	paginator := dynamodb.NewQueryPaginator(a.client, &dynamodb.QueryInput{
		TableName:                 aws.String(a.config.RelationshipTable),
		KeyConditionExpression:    aws.String("pk = :pk"),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		if len(page.Items) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// QueryAllChildren returns all children of an entity (including deleted ones).
// This is used by cascade delete to propagate TTL to all children.
func (a *Adapter) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	shards := shard.All(parentRef, a.config.NumShards)

	// Fast path for single shard (default)
	if len(shards) == 1 {
		return a.queryChildrenInShard(ctx, shards[0])
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var allChildren []ChildRef
	var wg sync.WaitGroup
	errs := make(chan error, len(shards))

	for _, shardPK := range shards {
		wg.Add(1)
		go func(shardPK string) {
			defer wg.Done()

			shardChildren, err := a.queryChildrenInShard(ctx, shardPK)
			if err != nil {
				errs <- fmt.Errorf("shard %s: %w", shardPK, err)
				return
			}

			mu.Lock()
			allChildren = append(allChildren, shardChildren...)
			mu.Unlock()
		}(shardPK)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return allChildren, nil
}

func (a *Adapter) queryChildrenInShard(ctx context.Context, shardPK string) ([]ChildRef, error) {
	var children []ChildRef

	paginator := dynamodb.NewQueryPaginator(a.client, &dynamodb.QueryInput{
		TableName:              aws.String(a.config.RelationshipTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: shardPK},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			children = append(children, unmarshalChildRef(item, shardPK))
		}
	}

	return children, nil
}

// SetTTLByKey sets TTL on an item by table and key.
// Used by cascade delete to propagate TTL to children.
func (a *Adapter) SetTTLByKey(ctx context.Context, table string, key PK, ttl int64) error {
	err := a.SetTTL(ctx, table, key, ttl)
	if errors.Is(err, bridge.ErrNotFound) {
		return nil
	}
	return err
}

// SetRelationshipTTL sets TTL on a relationship record.
func (a *Adapter) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	_, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.config.RelationshipTable),
		Key: map[string]types.AttributeValue{
			"pk":        &types.AttributeValueMemberS{Value: a.relationshipPK(parentRef, childRef)},
			"child_ref": &types.AttributeValueMemberS{Value: childRef},
		},
		UpdateExpression:    aws.String("SET #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
		},
	})

	// Ignore condition failure - missing or already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}
