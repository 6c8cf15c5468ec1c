package dynamo

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- unmarshalItem Tests ---

func TestUnmarshalItem_Full(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"pk":         &types.AttributeValueMemberS{Value: "7"},
		"version":    &types.AttributeValueMemberN{Value: "5"},
		"created_at": &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00Z"},
		"updated_at": &types.AttributeValueMemberS{Value: "2024-01-02T00:00:00Z"},
		"entity_ref": &types.AttributeValueMemberS{Value: "comment#7"},
		"parent_refs": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "post#42"},
		}},
	}

	item := unmarshalItem(raw)

	if item.Version != 5 {
		t.Errorf("expected Version 5, got %d", item.Version)
	}
	if item.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("expected CreatedAt '2024-01-01T00:00:00Z', got %q", item.CreatedAt)
	}
	if item.UpdatedAt != "2024-01-02T00:00:00Z" {
		t.Errorf("expected UpdatedAt '2024-01-02T00:00:00Z', got %q", item.UpdatedAt)
	}
	if item.EntityRef != "comment#7" {
		t.Errorf("expected EntityRef 'comment#7', got %q", item.EntityRef)
	}
	if len(item.ParentRefs) != 1 || item.ParentRefs[0] != "post#42" {
		t.Errorf("expected ParentRefs [post#42], got %v", item.ParentRefs)
	}
	if item.Raw == nil {
		t.Error("expected Raw to be set")
	}
}

func TestUnmarshalItem_Minimal(t *testing.T) {
	item := unmarshalItem(map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: "7"},
	})

	if item.Version != 0 {
		t.Errorf("expected Version 0 for missing version, got %d", item.Version)
	}
	if item.EntityRef != "" {
		t.Errorf("expected empty EntityRef, got %q", item.EntityRef)
	}
	if item.ParentRefs != nil {
		t.Errorf("expected no ParentRefs, got %v", item.ParentRefs)
	}
}

func TestUnmarshalItem_InvalidVersion(t *testing.T) {
	tests := []struct {
		name    string
		version types.AttributeValue
	}{
		{"wrong type", &types.AttributeValueMemberS{Value: "5"}},
		{"unparseable", &types.AttributeValueMemberN{Value: "invalid"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := unmarshalItem(map[string]types.AttributeValue{"version": tt.version})
			if item.Version != 0 {
				t.Errorf("expected Version 0, got %d", item.Version)
			}
		})
	}
}

// --- unmarshalChildRef Tests ---

func TestUnmarshalChildRef_Full(t *testing.T) {
	item := map[string]types.AttributeValue{
		"child_ref":    &types.AttributeValueMemberS{Value: "comment#c1"},
		"child_entity": &types.AttributeValueMemberS{Value: "comment"},
		"child_table":  &types.AttributeValueMemberS{Value: "comments"},
		"child_key": &types.AttributeValueMemberM{
			Value: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: "c1"},
			},
		},
		"ttl": &types.AttributeValueMemberN{Value: "1700000000"},
	}
	shardPK := "post#42#00"

	ref := unmarshalChildRef(item, shardPK)

	if ref.Ref != "comment#c1" {
		t.Errorf("expected Ref 'comment#c1', got %q", ref.Ref)
	}
	if ref.Entity != "comment" {
		t.Errorf("expected Entity 'comment', got %q", ref.Entity)
	}
	if ref.TableName != "comments" {
		t.Errorf("expected TableName 'comments', got %q", ref.TableName)
	}
	if ref.ShardPK != shardPK {
		t.Errorf("expected ShardPK %q, got %q", shardPK, ref.ShardPK)
	}
	if ref.TTL != 1700000000 {
		t.Errorf("expected TTL 1700000000, got %d", ref.TTL)
	}
	if v, ok := ref.Key["pk"].(*types.AttributeValueMemberS); !ok || v.Value != "c1" {
		t.Error("expected Key[pk] to be 'c1'")
	}
}

func TestUnmarshalChildRef_WrongKeyType(t *testing.T) {
	ref := unmarshalChildRef(map[string]types.AttributeValue{
		"child_ref": &types.AttributeValueMemberS{Value: "comment#c1"},
		"child_key": &types.AttributeValueMemberS{Value: "not-a-map"},
	}, "post#42#00")

	if ref.Key != nil {
		t.Error("expected nil Key for wrong type")
	}
	if ref.TTL != 0 {
		t.Errorf("expected TTL 0, got %d", ref.TTL)
	}
}

// --- properties Tests ---

func TestProperties_DropsManagedFields(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"pk":          &types.AttributeValueMemberS{Value: "7"},
		"id":          &types.AttributeValueMemberN{Value: "7"},
		"body":        &types.AttributeValueMemberS{Value: "hello"},
		"version":     &types.AttributeValueMemberN{Value: "3"},
		"entity_ref":  &types.AttributeValueMemberS{Value: "comment#7"},
		"parent_refs": &types.AttributeValueMemberL{},
		"ttl":         &types.AttributeValueMemberN{Value: "1"},
	}

	props, err := properties(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(props) != 2 {
		t.Errorf("expected 2 properties, got %v", props)
	}
	if props["body"] != "hello" {
		t.Errorf("expected body 'hello', got %v", props["body"])
	}
	if props["id"] != float64(7) {
		t.Errorf("expected id 7, got %v", props["id"])
	}
}

// --- IsDeleted Tests ---

func TestIsDeleted(t *testing.T) {
	now := time.Now().Unix()
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected bool
	}{
		{"no ttl", map[string]types.AttributeValue{}, false},
		{"nil item", nil, false},
		{"past ttl", ttlItem(strconv.FormatInt(now-60, 10)), true},
		{"future ttl", ttlItem(strconv.FormatInt(now+3600, 10)), false},
		{"zero ttl", ttlItem("0"), true},
		{"negative ttl", ttlItem("-1"), true},
		{"unparseable ttl", ttlItem("soon"), false},
		{"wrong type", map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberS{Value: "1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDeleted(tt.item); got != tt.expected {
				t.Errorf("IsDeleted() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func ttlItem(ttl string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"ttl": &types.AttributeValueMemberN{Value: ttl}}
}

// --- Expression Helper Tests ---

func TestTTLFilterValues_FreshTimestamp(t *testing.T) {
	before := time.Now().Unix()
	v, ok := TTLFilterValues()[":now"].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatal("expected :now to be a number")
	}
	got, err := strconv.ParseInt(v.Value, 10, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got < before || got > time.Now().Unix() {
		t.Errorf("expected current timestamp, got %d", got)
	}
}

func TestMergeExprNames(t *testing.T) {
	merged := mergeExprNames(TTLFilterNames(), map[string]string{"#pred": "title"})
	if len(merged) != 2 || merged["#ttl"] != "ttl" || merged["#pred"] != "title" {
		t.Errorf("unexpected merge result %v", merged)
	}
}

func TestMergeExprValues(t *testing.T) {
	merged := mergeExprValues(TTLFilterValues(), map[string]types.AttributeValue{
		":pred": &types.AttributeValueMemberS{Value: "x"},
	})
	if len(merged) != 2 {
		t.Errorf("expected 2 values, got %d", len(merged))
	}
}

// --- Config Tests ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		table     string
		numShards int
	}{
		{"empty", Config{}, DefaultRelationshipTable, 1},
		{"negative shards", Config{NumShards: -3}, DefaultRelationshipTable, 1},
		{"too many shards", Config{NumShards: 1000}, DefaultRelationshipTable, 256},
		{"custom", Config{RelationshipTable: "rels", NumShards: 16}, "rels", 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.validate()
			if cfg.RelationshipTable != tt.table {
				t.Errorf("expected RelationshipTable %q, got %q", tt.table, cfg.RelationshipTable)
			}
			if cfg.NumShards != tt.numShards {
				t.Errorf("expected NumShards %d, got %d", tt.numShards, cfg.NumShards)
			}
		})
	}
}

// --- mapSaveTransactionError Tests ---

func TestMapSaveTransactionError_NilError(t *testing.T) {
	if err := mapSaveTransactionError(nil, 0, 1, 1); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapSaveTransactionError_NonTransactionError(t *testing.T) {
	originalErr := errors.New("some other error")
	if err := mapSaveTransactionError(originalErr, 0, 1, 1); err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestMapSaveTransactionError_ParentCheckFailure(t *testing.T) {
	code := "ConditionalCheckFailed"
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{},            // Index 0 - first parent check
			{Code: &code}, // Index 1 - second parent check
			{},            // Index 2 - item update
		},
	}

	err := mapSaveTransactionError(txErr, 0, 2, 2)
	if !errors.Is(err, ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestMapSaveTransactionError_ItemUpdateFailure(t *testing.T) {
	code := "ConditionalCheckFailed"
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: &code}, // Index 0 - item update (no parent checks)
			{},            // Index 1 - relationship put
		},
	}

	err := mapSaveTransactionError(txErr, 0, 0, 0)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestMapSaveTransactionError_OtherCancellationCode(t *testing.T) {
	code := "TransactionConflict"
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}

	err := mapSaveTransactionError(txErr, 0, 0, 0)
	if err != txErr {
		t.Errorf("expected original error, got %v", err)
	}
}
