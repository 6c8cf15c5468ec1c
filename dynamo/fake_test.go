package dynamo_test

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/dynamo"
)

// fakeAPI serves GetItem from items, Query from relationship records and
// Scan from items, in pages of pageSize. Writes are recorded, not applied.
type fakeAPI struct {
	mu sync.Mutex

	// items maps table -> pk -> item.
	items map[string]map[string]map[string]types.AttributeValue

	// relationships maps relationship pk -> records.
	relationships map[string][]map[string]types.AttributeValue

	pageSize int

	transactErr error
	updateErr   error

	transactions []*dynamodb.TransactWriteItemsInput
	updates      []*dynamodb.UpdateItemInput
	queries      []*dynamodb.QueryInput
	scans        []*dynamodb.ScanInput
}

var _ dynamo.API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items:         map[string]map[string]map[string]types.AttributeValue{},
		relationships: map[string][]map[string]types.AttributeValue{},
		pageSize:      100,
	}
}

func (f *fakeAPI) put(table, pk string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[table] == nil {
		f.items[table] = map[string]map[string]types.AttributeValue{}
	}
	item["pk"] = &types.AttributeValueMemberS{Value: pk}
	f.items[table][pk] = item
}

func (f *fakeAPI) link(shardPK, childRef, childEntity, childTable, childID string, ttl int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := map[string]types.AttributeValue{
		"pk":           &types.AttributeValueMemberS{Value: shardPK},
		"child_ref":    &types.AttributeValueMemberS{Value: childRef},
		"child_entity": &types.AttributeValueMemberS{Value: childEntity},
		"child_table":  &types.AttributeValueMemberS{Value: childTable},
		"child_key":    &types.AttributeValueMemberM{Value: dynamo.Key(childID)},
	}
	if ttl != 0 {
		record["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)}
	}
	f.relationships[shardPK] = append(f.relationships[shardPK], record)
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.Key["pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[*in.TableName][pk]}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, in)
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}

// Query returns the shard's records unfiltered; the filter expression is not evaluated.
func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	items, next := f.page(f.relationships[pk], in.ExclusiveStartKey)
	return &dynamodb.QueryOutput{Items: items, LastEvaluatedKey: next}, nil
}

// Scan returns the table's items unfiltered; the filter expression is not evaluated.
func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, in)
	var all []map[string]types.AttributeValue
	for _, item := range f.items[*in.TableName] {
		if !dynamo.IsDeleted(item) {
			all = append(all, item)
		}
	}
	items, next := f.page(all, in.ExclusiveStartKey)
	return &dynamodb.ScanOutput{Items: items, LastEvaluatedKey: next}, nil
}

func (f *fakeAPI) page(all []map[string]types.AttributeValue, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue) {
	offset := 0
	if v, ok := start["offset"].(*types.AttributeValueMemberN); ok {
		offset, _ = strconv.Atoi(v.Value)
	}
	end := min(offset+f.pageSize, len(all))
	if offset >= len(all) {
		return nil, nil
	}
	var next map[string]types.AttributeValue
	if end < len(all) {
		next = map[string]types.AttributeValue{"offset": &types.AttributeValueMemberN{Value: strconv.Itoa(end)}}
	}
	return all[offset:end], next
}

// --- Test Entity Types ---

type Post struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

func (*Post) EntityName() string { return "post" }

type Comment struct {
	ID     string `json:"id"`
	PostID string `json:"postId,omitempty"`
	Body   string `json:"body,omitempty"`
}

func (*Comment) EntityName() string { return "comment" }

type Tag struct {
	ID     string `json:"id"`
	PostID string `json:"postId,omitempty"`
}

func (*Tag) EntityName() string { return "tag" }

// blogRegistry: posts cascade to comments and deny deletion while tags exist.
func blogRegistry() *bridge.Registry {
	r := bridge.NewRegistry()
	r.Register(bridge.EntityDescription{
		Name: "post",
		New:  func() bridge.Object { return &Post{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "comments", Destination: "comment", ToMany: true, Inverse: "post", DeleteRule: bridge.Cascade},
			{Name: "tags", Destination: "tag", ToMany: true, Inverse: "post", DeleteRule: bridge.Deny},
		},
	})
	r.Register(bridge.EntityDescription{
		Name: "comment",
		New:  func() bridge.Object { return &Comment{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "post", Destination: "post", Inverse: "comments", KeyPath: "postId"},
		},
	})
	r.Register(bridge.EntityDescription{
		Name: "tag",
		New:  func() bridge.Object { return &Tag{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "post", Destination: "post", Inverse: "tags", KeyPath: "postId"},
		},
	})
	return r
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func num(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}
