package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/cloudbridge/bridge"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSubstitute(t *testing.T) {
	out, err := run(t, "substitute", "/posts/:id/comments", "--object", `{"id": 42}`)
	require.NoError(t, err)
	assert.Equal(t, "/posts/42/comments\n", out)
}

func TestSubstitute_Mapping(t *testing.T) {
	id := uuid.NewString()

	out, err := run(t, "substitute", "/users/:user_id", "--mapping", "underscored", "--object", `{"userId": "`+id+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "/users/"+id+"\n", out)

	config := writeFile(t, "cloudbridge.yaml", "mapping: underscored\n")
	out, err = run(t, "substitute", "/users/:user_id", "--config", config, "--object", `{"userId": "`+id+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "/users/"+id+"\n", out)
}

func TestSubstitute_Errors(t *testing.T) {
	_, err := run(t, "substitute", "/posts/:id", "--object", `[1, 2]`)
	assert.ErrorContains(t, err, "expected a JSON object")

	_, err = run(t, "substitute", "/posts/:id", "--object", `{`)
	assert.Error(t, err)

	_, err = run(t, "substitute", "/posts/:id", "--mapping", "kebab")
	assert.Error(t, err)

	_, err = run(t, "substitute")
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts/42/comments" || r.URL.Query().Get("limit") != "2" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"body":"first"},{"id":2,"body":"second"}]`))
	}))
	defer server.Close()

	out, err := run(t, "fetch", "/posts/:id/comments",
		"--object", `{"id": 42}`,
		"--base-url", server.URL,
		"--param", "limit=2",
	)
	require.NoError(t, err)

	payload, err := oj.ParseString(out)
	require.NoError(t, err)
	comments, ok := payload.([]any)
	require.True(t, ok)
	require.Len(t, comments, 2)
	assert.Equal(t, map[string]any{"id": int64(1), "body": "first"}, comments[0])
}

func TestFetch_Errors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := run(t, "fetch", "/posts/1", "--base-url", server.URL)
	assert.ErrorIs(t, err, bridge.ErrNotFound)

	_, err = run(t, "fetch", "/posts/1")
	assert.ErrorContains(t, err, "no base URL")

	_, err = run(t, "fetch", "/posts/1", "--base-url", server.URL, "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestLoadSchema(t *testing.T) {
	path := writeFile(t, "schema.yaml", `
entities:
  - name: post
    rest_base_url: /posts
    relationships:
      - name: comments
        destination: comment
        to_many: true
        inverse: post
        delete_rule: cascade
      - name: tags
        destination: tag
        to_many: true
        delete_rule: deny
  - name: comment
    table: post_comments
    relationships:
      - name: post
        destination: post
        inverse: comments
        key_path: postId
`)

	registry, err := loadSchema(path)
	require.NoError(t, err)

	children := registry.ChildrenOf("post")
	require.Len(t, children, 2)
	assert.Equal(t, bridge.Cascade, children[0].DeleteRule)
	assert.Equal(t, bridge.Deny, children[1].DeleteRule)

	comment, ok := registry.Entity("comment")
	require.True(t, ok)
	assert.Equal(t, "post_comments", comment.TableName)
	assert.Equal(t, "id", comment.Identifier)

	rel, ok := registry.Relationship("comment", "post")
	require.True(t, ok)
	assert.Equal(t, "postId", rel.KeyPath)
	assert.Equal(t, bridge.Nullify, rel.DeleteRule)
}

func TestLoadSchema_Errors(t *testing.T) {
	_, err := loadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadSchema(writeFile(t, "schema.yaml", "entities:\n  - rest_base_url: /x\n"))
	assert.ErrorContains(t, err, "without a name")

	_, err = loadSchema(writeFile(t, "schema.yaml", `
entities:
  - name: post
    relationships:
      - name: comments
        delete_rule: explode
`))
	assert.ErrorContains(t, err, `unknown delete rule "explode"`)
}
