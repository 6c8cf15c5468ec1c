package bridge_test

import (
	"errors"
	"testing"

	"github.com/jacentio/cloudbridge/bridge"
)

func TestNewRegistry(t *testing.T) {
	r := bridge.NewRegistry()
	if r == nil {
		t.Fatal("expected non-nil Registry")
	}
	if len(r.AllEntities()) != 0 {
		t.Errorf("expected 0 entities, got %d", len(r.AllEntities()))
	}
}

func TestRegistry_Register(t *testing.T) {
	r := bridge.NewRegistry()

	e := r.Register(bridge.EntityDescription{Name: "studio"})

	if e.Identifier != "id" {
		t.Errorf("expected default Identifier 'id', got %q", e.Identifier)
	}
	if e.TableName != "studios" {
		t.Errorf("expected default TableName 'studios', got %q", e.TableName)
	}

	entities := r.AllEntities()
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if entities[0].Name != "studio" {
		t.Errorf("expected Name 'studio', got %q", entities[0].Name)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := bridge.NewRegistry()

	r.Register(bridge.EntityDescription{Name: "studio", RestBaseURL: "/v1/studios"})
	r.Register(bridge.EntityDescription{Name: "title"})
	r.Register(bridge.EntityDescription{Name: "studio", RestBaseURL: "/v2/studios", TableName: "studio_table"})

	entities := r.AllEntities()
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[0].RestBaseURL != "/v2/studios" {
		t.Errorf("expected replaced RestBaseURL '/v2/studios', got %q", entities[0].RestBaseURL)
	}

	e, ok := r.Entity("studio")
	if !ok {
		t.Fatal("expected studio to be registered")
	}
	if e.TableName != "studio_table" {
		t.Errorf("expected TableName 'studio_table', got %q", e.TableName)
	}
}

func TestRegistry_ChildrenOf(t *testing.T) {
	r := newRegistry()

	postChildren := r.ChildrenOf("post")
	if len(postChildren) != 1 {
		t.Fatalf("expected 1 child for post, got %d", len(postChildren))
	}
	if postChildren[0].Destination != "comment" {
		t.Errorf("expected child type 'comment', got %q", postChildren[0].Destination)
	}

	authorChildren := r.ChildrenOf("author")
	if len(authorChildren) != 2 {
		t.Errorf("expected 2 children for author, got %d", len(authorChildren))
	}

	// Comment has no to-many relationships
	if children := r.ChildrenOf("comment"); len(children) != 0 {
		t.Errorf("expected 0 children for comment, got %d", len(children))
	}

	// Note: nil slice is acceptable - len(nil) == 0 and range works on nil slices
	if children := r.ChildrenOf("nonexistent"); len(children) != 0 {
		t.Errorf("expected 0 children for nonexistent type, got %d", len(children))
	}
}

func TestRegistry_HasChildren(t *testing.T) {
	r := newRegistry()

	if !r.HasChildren("post") {
		t.Error("expected post to have children")
	}
	if r.HasChildren("profile") {
		t.Error("expected profile to not have children")
	}
}

func TestRegistry_EntityFor(t *testing.T) {
	r := newRegistry()

	e, err := r.EntityFor(&Post{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name != "post" {
		t.Errorf("expected entity 'post', got %q", e.Name)
	}

	_, err = bridge.NewRegistry().EntityFor(&Post{})
	if !errors.Is(err, bridge.ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}

	_, err = r.EntityFor(nil)
	if !errors.Is(err, bridge.ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity for nil, got %v", err)
	}
}

func TestRegistry_InverseOf(t *testing.T) {
	r := newRegistry()

	rel, ok := r.Relationship("post", "comments")
	if !ok {
		t.Fatal("expected post.comments")
	}
	inverse, ok := r.InverseOf(rel)
	if !ok {
		t.Fatal("expected inverse of post.comments")
	}
	if inverse.Name != "post" || inverse.ToMany {
		t.Errorf("expected to-one inverse 'post', got %+v", inverse)
	}

	drafts, _ := r.Relationship("author", "drafts")
	if _, ok := r.InverseOf(drafts); ok {
		t.Error("expected author.drafts to have no inverse")
	}

	if _, ok := r.Relationship("missing", "comments"); ok {
		t.Error("expected no relationship on unknown entity")
	}
}

func TestRegistry_Matches(t *testing.T) {
	r := newRegistry()
	comment, _ := r.Entity("comment")
	post := &Post{ID: 42}

	tests := []struct {
		name      string
		predicate *bridge.Predicate
		obj       *Comment
		expected  bool
	}{
		{"nil predicate", nil, &Comment{ID: 1}, true},
		{"relationship by key path", bridge.Equal("post", post), &Comment{ID: 1, PostID: 42}, true},
		{"relationship other parent", bridge.Equal("post", post), &Comment{ID: 1, PostID: 7}, false},
		{"relationship without key", bridge.Equal("post", post), &Comment{ID: 1}, false},
		{"attribute", bridge.Equal("body", "hi"), &Comment{ID: 1, Body: "hi"}, true},
		{"attribute mismatch", bridge.Equal("body", "hi"), &Comment{ID: 1, Body: "ho"}, false},
		{"numeric attribute", bridge.Equal("postId", 42), &Comment{ID: 1, PostID: 42}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Matches(comment, tt.predicate, tt.obj); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPredicate_Matches(t *testing.T) {
	post := &Post{ID: 1}
	holder := map[string]any{"post": post, "title": "x"}

	if !bridge.Equal("post", post).Matches(holder) {
		t.Error("expected same object to match")
	}
	if bridge.Equal("post", &Post{ID: 1}).Matches(holder) {
		t.Error("expected a different instance not to match")
	}
	if bridge.Equal("title", post).Matches(holder) {
		t.Error("expected object not to match a string")
	}
	if !bridge.Equal("missing", nil).Matches(holder) {
		t.Error("expected absent key to match nil")
	}

	labels := map[string]any{"label": Label{Name: "a", Attrs: map[string]any{"k": "v"}}}
	if !bridge.Equal("label", Label{Name: "a", Attrs: map[string]any{"k": "v"}}).Matches(labels) {
		t.Error("expected equal value objects to match")
	}
	if bridge.Equal("label", Label{Name: "a", Attrs: []any{"v"}}).Matches(labels) {
		t.Error("expected different value objects not to match")
	}
	if bridge.Equal("label", &Label{Name: "a", Attrs: map[string]any{"k": "v"}}).Matches(labels) {
		t.Error("expected a pointer not to match a value object")
	}
	if (*bridge.Predicate)(nil).String() != "TRUEPREDICATE" {
		t.Errorf("expected TRUEPREDICATE, got %q", (*bridge.Predicate)(nil).String())
	}
}
