package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/internal/shard"
)

// API is the subset of *dynamodb.Client used by the Adapter.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Adapter is a bridge.DatabaseAdapter on DynamoDB.
//
// Each entity lives in its own table keyed by "pk". To-one relationships with a
// KeyPath are mirrored into a sharded relationship table so children can be
// found from their parent. Deletes are soft: the item gets a TTL.
type Adapter struct {
	client   API
	registry *bridge.Registry
	config   Config
	logger   *slog.Logger
}

var _ bridge.DatabaseAdapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates a new Adapter.
func New(client API, registry *bridge.Registry, config Config, opts ...Option) *Adapter {
	config.validate()
	if registry == nil {
		registry = bridge.NewRegistry()
	}
	a := &Adapter{
		client:   client,
		registry: registry,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromEnv creates an Adapter with a client built from the default AWS configuration.
func NewFromEnv(ctx context.Context, registry *bridge.Registry, config Config, optFns ...func(*awsconfig.LoadOptions) error) (*Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(awsCfg), registry, config), nil
}

// Registry returns the entity registry.
func (a *Adapter) Registry() *bridge.Registry {
	return a.registry
}

// TableName returns the DynamoDB table of entity.
func (a *Adapter) TableName(entity *bridge.EntityDescription) string {
	return a.config.TablePrefix + entity.TableName
}

// relationshipPK computes the sharded partition key for a relationship record.
func (a *Adapter) relationshipPK(parentRef, childRef string) string {
	return shard.RelationshipPK(parentRef, childRef, a.config.NumShards)
}

// Get retrieves an item by key, returning bridge.ErrNotFound if deleted or missing.
func (a *Adapter) Get(ctx context.Context, table string, key PK) (*Item, error) {
	raw, err := a.getRaw(ctx, table, key)
	if err != nil {
		return nil, err
	}
	if raw == nil || IsDeleted(raw) {
		return nil, bridge.ErrNotFound
	}
	return unmarshalItem(raw), nil
}

func (a *Adapter) getRaw(ctx context.Context, table string, key PK) (map[string]types.AttributeValue, error) {
	result, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

// Lookup returns the active object of entity with the given identifier.
func (a *Adapter) Lookup(ctx context.Context, entity *bridge.EntityDescription, id string) (bridge.Object, error) {
	item, err := a.Get(ctx, a.TableName(entity), Key(id))
	if err != nil {
		if errors.Is(err, bridge.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, bridge.Ref(entity.Name, id))
		}
		return nil, err
	}
	return a.decode(entity, item.Raw)
}

func (a *Adapter) decode(entity *bridge.EntityDescription, raw map[string]types.AttributeValue) (bridge.Object, error) {
	props, err := properties(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s item: %w", entity.Name, err)
	}
	obj, err := entity.NewObject()
	if err != nil {
		return nil, err
	}
	if err := bridge.ApplyProperties(obj, props); err != nil {
		return nil, err
	}
	return obj, nil
}

// parentLink is a to-one relationship target of an object.
type parentLink struct {
	entity string
	id     string
	ref    string
}

func (a *Adapter) parents(entity *bridge.EntityDescription, obj bridge.Object) []parentLink {
	var links []parentLink
	for _, rel := range entity.Relationships {
		if rel.ToMany || rel.KeyPath == "" {
			continue
		}
		v, ok := bridge.ValueForKeyPath(obj, rel.KeyPath)
		id := bridge.FormatValue(v)
		if !ok || id == "" {
			continue
		}
		links = append(links, parentLink{entity: rel.Destination, id: id, ref: bridge.Ref(rel.Destination, id)})
	}
	return links
}

// Save inserts or updates obj.
//
// The write is one transaction: the item upsert (guarded by the version read
// just before), a relationship record per to-one relationship, removal of
// relationship records for parents the object no longer points at, and, with
// ValidateParents, an existence check per parent.
//
// Saving over a soft-deleted item re-creates it: the TTL is removed and the
// relationship records are written again.
func (a *Adapter) Save(ctx context.Context, entity *bridge.EntityDescription, obj bridge.Object) error {
	id := bridge.Identifier(entity, obj)
	if id == "" {
		return fmt.Errorf("%w: %s", bridge.ErrMissingIdentifier, entity.Name)
	}
	ref := bridge.Ref(entity.Name, id)
	table := a.TableName(entity)
	key := Key(id)

	props, err := bridge.Properties(obj)
	if err != nil {
		return err
	}
	attrs, err := attributevalue.MarshalMap(props)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}

	current, err := a.getRaw(ctx, table, key)
	if err != nil {
		return err
	}
	var existing *Item
	revive := false
	if current != nil {
		existing = unmarshalItem(current)
		_, revive = ttlOf(current)
	}
	if revive {
		a.logger.Debug("re-creating soft deleted item", "ref", ref, "version", existing.Version)
	}

	parents := a.parents(entity, obj)
	items := []types.TransactWriteItem{}

	// 1. Parent condition checks
	parentCheckStart := len(items)
	if a.config.ValidateParents {
		for _, p := range parents {
			dest, ok := a.registry.Entity(p.entity)
			if !ok {
				return fmt.Errorf("%w: %s", bridge.ErrUnknownEntity, p.entity)
			}
			items = append(items, types.TransactWriteItem{
				ConditionCheck: &types.ConditionCheck{
					TableName:                 aws.String(a.TableName(dest)),
					Key:                       Key(p.id),
					ConditionExpression:       aws.String(ParentExistsCondition()),
					ExpressionAttributeNames:  TTLFilterNames(),
					ExpressionAttributeValues: TTLFilterValues(),
				},
			})
		}
	}
	parentCheckEnd := len(items)

	// 2. Item upsert
	update, err := a.itemUpdate(table, key, ref, attrs, parents, existing, revive)
	if err != nil {
		return err
	}
	entityIndex := len(items)
	items = append(items, types.TransactWriteItem{Update: update})

	// 3. Relationship records
	linked := make(map[string]bool, len(parents))
	for _, p := range parents {
		linked[p.ref] = true
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(a.config.RelationshipTable),
				Item: map[string]types.AttributeValue{
					"pk":           &types.AttributeValueMemberS{Value: a.relationshipPK(p.ref, ref)},
					"child_ref":    &types.AttributeValueMemberS{Value: ref},
					"parent_ref":   &types.AttributeValueMemberS{Value: p.ref},
					"child_entity": &types.AttributeValueMemberS{Value: entity.Name},
					"child_table":  &types.AttributeValueMemberS{Value: table},
					"child_key":    &types.AttributeValueMemberM{Value: key},
				},
			},
		})
	}
	if existing != nil {
		for _, old := range existing.ParentRefs {
			if linked[old] {
				continue
			}
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(a.config.RelationshipTable),
					Key: map[string]types.AttributeValue{
						"pk":        &types.AttributeValueMemberS{Value: a.relationshipPK(old, ref)},
						"child_ref": &types.AttributeValueMemberS{Value: ref},
					},
				},
			})
		}
	}

	// 4. Execute transaction
	_, err = a.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := mapSaveTransactionError(err, parentCheckStart, parentCheckEnd, entityIndex); err != nil {
		return fmt.Errorf("save %s: %w", ref, err)
	}

	a.logger.Debug("saved item",
		"ref", ref,
		"table", table,
		"parents", len(parents),
	)
	return nil
}

// itemUpdate builds the upsert of an entity item. Managed fields are set by the
// adapter; every other property of the object is SET from attrs. With revive
// the item's TTL is removed and its creation time reset.
func (a *Adapter) itemUpdate(table string, key PK, ref string, attrs map[string]types.AttributeValue, parents []parentLink, existing *Item, revive bool) (*types.Update, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	refs := make([]string, 0, len(parents))
	for _, p := range parents {
		refs = append(refs, p.ref)
	}
	refsAttr, err := attributevalue.MarshalList(refs)
	if err != nil {
		return nil, fmt.Errorf("marshal parent refs: %w", err)
	}

	var setClauses []string
	exprNames := map[string]string{
		"#entity_ref":  "entity_ref",
		"#parent_refs": "parent_refs",
		"#created_at":  "created_at",
		"#updated_at":  "updated_at",
		"#version":     "version",
	}
	exprValues := map[string]types.AttributeValue{
		":entity_ref":  &types.AttributeValueMemberS{Value: ref},
		":parent_refs": &types.AttributeValueMemberL{Value: refsAttr},
		":now":         &types.AttributeValueMemberS{Value: now},
		":zero":        &types.AttributeValueMemberN{Value: "0"},
		":one":         &types.AttributeValueMemberN{Value: "1"},
	}

	// Add object properties in a stable order
	i := 0
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if managedFields[k] {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = attrs[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}

	// Add managed field updates
	createdAt := "#created_at = if_not_exists(#created_at, :now)"
	if revive {
		createdAt = "#created_at = :now"
	}
	setClauses = append(setClauses,
		"#entity_ref = :entity_ref",
		"#parent_refs = :parent_refs",
		createdAt,
		"#updated_at = :now",
		"#version = if_not_exists(#version, :zero) + :one",
	)
	expr := "SET " + strings.Join(setClauses, ", ")

	var condition string
	switch {
	case existing == nil:
		condition = "attribute_not_exists(pk)"
	case revive:
		expr += " REMOVE #ttl"
		exprNames["#ttl"] = "ttl"
		condition = "attribute_not_exists(#version)"
		if existing.Version != 0 {
			condition = "#version = :expected_version"
			exprValues[":expected_version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(existing.Version, 10)}
		}
	case existing.Version == 0:
		condition = "attribute_not_exists(#version) AND attribute_not_exists(#ttl)"
		exprNames["#ttl"] = "ttl"
	default:
		condition = "#version = :expected_version AND attribute_not_exists(#ttl)"
		exprNames["#ttl"] = "ttl"
		exprValues[":expected_version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(existing.Version, 10)}
	}

	return &types.Update{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	}, nil
}

// Fetch returns the active objects of entity matching predicate.
//
// An equality on a to-one relationship is answered from the relationship
// table; anything else scans the entity table.
func (a *Adapter) Fetch(ctx context.Context, entity *bridge.EntityDescription, predicate *bridge.Predicate) ([]bridge.Object, error) {
	if rel, related, ok := a.registry.RelationshipPredicate(entity, predicate); ok && !rel.ToMany && rel.KeyPath != "" {
		return a.fetchChildren(ctx, entity, rel, related, predicate)
	}
	return a.scan(ctx, entity, predicate)
}

func (a *Adapter) fetchChildren(ctx context.Context, entity *bridge.EntityDescription, rel bridge.RelationshipDescription, related bridge.Object, predicate *bridge.Predicate) ([]bridge.Object, error) {
	dest, ok := a.registry.Entity(rel.Destination)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrUnknownEntity, rel.Destination)
	}
	parentID := bridge.Identifier(dest, related)
	if parentID == "" {
		return nil, nil
	}

	children, err := a.QueryAllChildren(ctx, bridge.Ref(dest.Name, parentID))
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	prefix := entity.Name + "#"
	var out []bridge.Object
	for _, child := range children {
		if child.Entity != entity.Name || !strings.HasPrefix(child.Ref, prefix) {
			continue
		}
		if child.TTL != 0 && child.TTL <= now {
			continue
		}
		obj, err := a.Lookup(ctx, entity, strings.TrimPrefix(child.Ref, prefix))
		if errors.Is(err, bridge.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.registry.Matches(entity, predicate, obj) {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (a *Adapter) scan(ctx context.Context, entity *bridge.EntityDescription, predicate *bridge.Predicate) ([]bridge.Object, error) {
	filterExpr := TTLFilterExpr()
	exprNames := TTLFilterNames()
	exprValues := TTLFilterValues()

	// Push simple equalities down to DynamoDB; the result is still matched below.
	if av, ok := filterValue(predicate); ok {
		filterExpr = fmt.Sprintf("(%s) AND #pred = :pred", filterExpr)
		exprNames = mergeExprNames(exprNames, map[string]string{"#pred": predicate.Key})
		exprValues = mergeExprValues(exprValues, map[string]types.AttributeValue{":pred": av})
	}

	var out []bridge.Object
	paginator := dynamodb.NewScanPaginator(a.client, &dynamodb.ScanInput{
		TableName:                 aws.String(a.TableName(entity)),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			obj, err := a.decode(entity, raw)
			if err != nil {
				return nil, err
			}
			if a.registry.Matches(entity, predicate, obj) {
				out = append(out, obj)
			}
		}
	}
	return out, nil
}

// filterValue returns the attribute value for pushing predicate down as a
// filter, for single-key equalities on scalars.
func filterValue(predicate *bridge.Predicate) (types.AttributeValue, bool) {
	if predicate == nil || predicate.Key == "" || strings.Contains(predicate.Key, ".") || managedFields[predicate.Key] {
		return nil, false
	}
	switch predicate.Value.(type) {
	case string, bool, int, int32, int64, float64:
		av, err := attributevalue.Marshal(predicate.Value)
		return av, err == nil
	default:
		return nil, false
	}
}

// Delete soft deletes obj by setting its TTL.
// Relationships with the Deny rule refuse deletion while active children exist.
func (a *Adapter) Delete(ctx context.Context, entity *bridge.EntityDescription, obj bridge.Object) error {
	id := bridge.Identifier(entity, obj)
	if id == "" {
		return fmt.Errorf("%w: %s", bridge.ErrMissingIdentifier, entity.Name)
	}
	ref := bridge.Ref(entity.Name, id)

	if denied := a.deniedChildren(entity); len(denied) > 0 {
		hasChildren, err := a.HasActiveChildren(ctx, ref, denied...)
		if err != nil {
			return err
		}
		if hasChildren {
			return fmt.Errorf("%w: %s", ErrHasChildren, ref)
		}
	}

	if err := a.SetTTL(ctx, a.TableName(entity), Key(id), time.Now().Unix()); err != nil {
		if errors.Is(err, bridge.ErrNotFound) {
			return fmt.Errorf("%w: %s", bridge.ErrNotFound, ref)
		}
		return err
	}

	a.logger.Debug("soft deleted item", "ref", ref)
	return nil
}

// deniedChildren returns the child entities whose relationship from entity has the Deny rule.
func (a *Adapter) deniedChildren(entity *bridge.EntityDescription) []string {
	var denied []string
	for _, rel := range a.registry.ChildrenOf(entity.Name) {
		if rel.DeleteRule == bridge.Deny {
			denied = append(denied, rel.Destination)
		}
	}
	return denied
}

// mapSaveTransactionError maps DynamoDB transaction errors for Save.
// Parent checks occupy [parentStart, parentEnd); entityIndex is the item upsert.
func mapSaveTransactionError(err error, parentStart, parentEnd, entityIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if i >= parentStart && i < parentEnd {
				return ErrParentNotFound
			}
			if i == entityIndex {
				return ErrConcurrentModification
			}
		}
	}

	return err
}
