package rest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jacentio/cloudbridge/bridge"
)

// Client performs CRUD for JSON-backed objects directly against a Session.
// Objects are JSON-tagged structs (or Records) patched in place from responses.
type Client struct {
	Session Session

	// Mapping translates cloud keys to local property names. Default: IdentityMapping.
	Mapping bridge.PropertyMapping
}

// NewClient creates a Client.
func NewClient(session Session, mapping bridge.PropertyMapping) *Client {
	return &Client{Session: session, Mapping: mapping}
}

func (c *Client) mapping() bridge.PropertyMapping {
	if c.Mapping == nil {
		return bridge.IdentityMapping{}
	}
	return c.Mapping
}

// Create POSTs obj to path, substituted with obj, and patches obj from the response.
func (c *Client) Create(ctx context.Context, obj any, path string) error {
	body, err := c.body(obj)
	if err != nil {
		return err
	}
	payload, err := c.Session.Post(ctx, c.path(obj, path), body)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	return c.Patch(obj, payload)
}

// Reload GETs path, substituted with obj, and patches obj from the response.
func (c *Client) Reload(ctx context.Context, obj any, path string) error {
	resolved := c.path(obj, path)
	payload, err := c.Session.Get(ctx, resolved, nil)
	if err != nil {
		return err
	}
	if payload == nil {
		return fmt.Errorf("%w: GET %s returned no body", bridge.ErrMalformedPayload, resolved)
	}
	return c.Patch(obj, payload)
}

// Save PUTs obj to path, substituted with obj, and patches obj from the response.
func (c *Client) Save(ctx context.Context, obj any, path string) error {
	body, err := c.body(obj)
	if err != nil {
		return err
	}
	payload, err := c.Session.Put(ctx, c.path(obj, path), body)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	return c.Patch(obj, payload)
}

// Delete sends DELETE to path, substituted with obj.
func (c *Client) Delete(ctx context.Context, obj any, path string) error {
	_, err := c.Session.Delete(ctx, c.path(obj, path), nil)
	return err
}

// Patch updates obj in place from a decoded JSON dictionary keyed by cloud names.
func (c *Client) Patch(obj any, payload any) error {
	dict, ok := payload.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: payload is %T, want object", bridge.ErrMalformedPayload, payload)
	}
	m := c.mapping()
	props := make(map[string]any, len(dict))
	for k, v := range dict {
		props[m.PersistentKey(k)] = v
	}
	return bridge.ApplyProperties(obj, props)
}

func (c *Client) path(obj any, path string) string {
	return bridge.Substitute(obj, path, c.mapping())
}

func (c *Client) body(obj any) (map[string]any, error) {
	props, err := bridge.Properties(obj)
	if err != nil {
		return nil, err
	}
	m := c.mapping()
	body := make(map[string]any, len(props))
	for k, v := range props {
		body[m.CloudKey(k)] = v
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]bridge.CloudObject, error) {
	payload, err := c.Session.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return cloudObjects(payload)
}

// FetchObjects GETs path and decodes each element of the returned array into a new T.
func FetchObjects[T any](ctx context.Context, c *Client, path string) ([]*T, error) {
	dicts, err := c.fetch(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(dicts))
	for _, dict := range dicts {
		obj := new(T)
		if err := c.Patch(obj, dict); err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// FetchObject GETs path and returns the first object, or bridge.ErrNotFound.
func FetchObject[T any](ctx context.Context, c *Client, path string) (*T, error) {
	objects, err := FetchObjects[T](ctx, c, path)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, path)
	}
	return objects[0], nil
}

// FetchRelations fetches the objects at path, substituted with owner.
func FetchRelations[T any](ctx context.Context, c *Client, owner any, path string) ([]*T, error) {
	return FetchObjects[T](ctx, c, c.path(owner, path))
}

// FetchRelation fetches the first object at path, substituted with owner.
func FetchRelation[T any](ctx context.Context, c *Client, owner any, path string) (*T, error) {
	return FetchObject[T](ctx, c, c.path(owner, path))
}
