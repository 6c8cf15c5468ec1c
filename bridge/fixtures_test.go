package bridge_test

import (
	"github.com/jacentio/cloudbridge/bridge"
)

type Post struct {
	ID       int    `json:"id"`
	Title    string `json:"title,omitempty"`
	AuthorID string `json:"authorId,omitempty"`
}

func (*Post) EntityName() string { return "post" }

type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId,omitempty"`
	Body   string `json:"body,omitempty"`
}

func (*Comment) EntityName() string { return "comment" }

// Label is a value-typed object whose fields make it uncomparable at runtime.
type Label struct {
	Name  string
	Attrs any
}

func (Label) EntityName() string { return "label" }

type Author struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (*Author) EntityName() string { return "author" }

var authorAccessors = bridge.Accessors[*Author]{
	"id":   func(a *Author) any { return a.ID },
	"name": func(a *Author) any { return a.Name },
}

func (a *Author) Value(key string) (any, bool) { return authorAccessors.Lookup(a, key) }

type Profile struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

func (*Profile) EntityName() string { return "profile" }

// newRegistry models posts with comments, authors with posts, and authors with one profile.
func newRegistry() *bridge.Registry {
	r := bridge.NewRegistry()
	r.Register(bridge.EntityDescription{
		Name:        "post",
		RestBaseURL: "/posts",
		New:         func() bridge.Object { return &Post{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "comments", Destination: "comment", ToMany: true, Inverse: "post", RestBaseURL: "/posts/:id/comments", DeleteRule: bridge.Cascade},
			{Name: "author", Destination: "author", Inverse: "posts", KeyPath: "authorId"},
		},
	})
	r.Register(bridge.EntityDescription{
		Name:        "comment",
		RestBaseURL: "/comments",
		New:         func() bridge.Object { return &Comment{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "post", Destination: "post", Inverse: "comments", KeyPath: "postId"},
		},
	})
	r.Register(bridge.EntityDescription{
		Name:        "author",
		RestBaseURL: "/authors",
		New:         func() bridge.Object { return &Author{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "posts", Destination: "post", ToMany: true, Inverse: "author", RestBaseURL: "/authors/:id/posts"},
			{Name: "profile", Destination: "profile", Inverse: "author"},
			{Name: "drafts", Destination: "post", ToMany: true},
		},
	})
	r.Register(bridge.EntityDescription{
		Name:        "profile",
		RestBaseURL: "/profiles",
		New:         func() bridge.Object { return &Profile{} },
		Relationships: []bridge.RelationshipDescription{
			{Name: "author", Destination: "author", Inverse: "profile", KeyPath: "authorId"},
		},
	})
	return r
}
