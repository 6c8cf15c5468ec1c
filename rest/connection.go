package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jacentio/cloudbridge/bridge"
)

// Connection is a bridge.CloudConnection talking to a REST backend through a Session.
//
// Collections live at an entity's RestBaseURL and single objects at
// RestBaseURL + "/:<identifier>". A URL override in the call's UserInfo
// replaces the computed path.
type Connection struct {
	session  Session
	registry *bridge.Registry
	mapping  bridge.PropertyMapping
	logger   *slog.Logger
}

var _ bridge.BulkCloudConnection = (*Connection)(nil)

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithMapping sets the property mapping used for paths and query parameters.
func WithMapping(mapping bridge.PropertyMapping) ConnectionOption {
	return func(c *Connection) {
		if mapping != nil {
			c.mapping = mapping
		}
	}
}

// WithConnectionLogger sets the logger.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConnection creates a Connection. The registry resolves relationship paths.
func NewConnection(session Session, registry *bridge.Registry, opts ...ConnectionOption) *Connection {
	if registry == nil {
		registry = bridge.NewRegistry()
	}
	c := &Connection{
		session:  session,
		registry: registry,
		mapping:  bridge.IdentityMapping{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mapping returns the connection's property mapping.
func (c *Connection) Mapping() bridge.PropertyMapping {
	return c.mapping
}

// SubstitutePath substitutes path's placeholders with obj's properties.
func (c *Connection) SubstitutePath(obj any, path string) string {
	return bridge.Substitute(obj, path, c.mapping)
}

// FetchCloudObjectsFromPath GETs path and returns the cloud objects in the payload.
// A single object payload is returned as one element.
func (c *Connection) FetchCloudObjectsFromPath(ctx context.Context, path string, params url.Values) ([]bridge.CloudObject, error) {
	payload, err := c.session.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return cloudObjects(payload)
}

// FetchCloudObjects fetches the cloud objects of entity matching predicate.
func (c *Connection) FetchCloudObjects(ctx context.Context, entity *bridge.EntityDescription, predicate *bridge.Predicate, userInfo bridge.UserInfo) ([]bridge.CloudObject, error) {
	path, params := c.fetchPath(entity, predicate, userInfo)
	clouds, err := c.FetchCloudObjectsFromPath(ctx, path, params)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched cloud objects", "entity", entity.Name, "path", path, "count", len(clouds))
	return clouds, nil
}

// CreateCloudObject POSTs cloud to the entity's collection path.
func (c *Connection) CreateCloudObject(ctx context.Context, entity *bridge.EntityDescription, cloud bridge.CloudObject, obj bridge.Object, userInfo bridge.UserInfo) (bridge.CloudObject, error) {
	path := c.collectionPath(entity, obj, userInfo)
	payload, err := c.session.Post(ctx, path, cloud)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return cloud, nil
	}
	return cloudObject(payload)
}

// LatestCloudObject GETs obj's path.
func (c *Connection) LatestCloudObject(ctx context.Context, entity *bridge.EntityDescription, obj bridge.Object, userInfo bridge.UserInfo) (bridge.CloudObject, error) {
	path := c.objectPath(entity, obj, userInfo)
	payload, err := c.session.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: GET %s returned no body", bridge.ErrMalformedPayload, path)
	}
	return cloudObject(payload)
}

// SaveCloudObject PUTs cloud to obj's path.
func (c *Connection) SaveCloudObject(ctx context.Context, entity *bridge.EntityDescription, cloud bridge.CloudObject, obj bridge.Object, userInfo bridge.UserInfo) (bridge.CloudObject, error) {
	path := c.objectPath(entity, obj, userInfo)
	payload, err := c.session.Put(ctx, path, cloud)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return cloud, nil
	}
	return cloudObject(payload)
}

// DeleteCloudObject sends DELETE to obj's path.
func (c *Connection) DeleteCloudObject(ctx context.Context, entity *bridge.EntityDescription, _ bridge.CloudObject, obj bridge.Object, userInfo bridge.UserInfo) error {
	_, err := c.session.Delete(ctx, c.objectPath(entity, obj, userInfo), nil)
	return err
}

// BulkCreateCloudObjects POSTs each cloud object in turn.
func (c *Connection) BulkCreateCloudObjects(ctx context.Context, entity *bridge.EntityDescription, clouds []bridge.CloudObject, objs []bridge.Object) ([]bridge.CloudObject, error) {
	out := make([]bridge.CloudObject, 0, len(clouds))
	for i, cloud := range clouds {
		created, err := c.CreateCloudObject(ctx, entity, cloud, objs[i], nil)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}

// BulkSaveCloudObjects PUTs each cloud object in turn.
func (c *Connection) BulkSaveCloudObjects(ctx context.Context, entity *bridge.EntityDescription, clouds []bridge.CloudObject, objs []bridge.Object) ([]bridge.CloudObject, error) {
	out := make([]bridge.CloudObject, 0, len(clouds))
	for i, cloud := range clouds {
		saved, err := c.SaveCloudObject(ctx, entity, cloud, objs[i], nil)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// BulkDeleteCloudObjects DELETEs each object in turn. Objects the backend no
// longer has count as deleted.
func (c *Connection) BulkDeleteCloudObjects(ctx context.Context, entity *bridge.EntityDescription, clouds []bridge.CloudObject, objs []bridge.Object) ([]bridge.DeletedObjectIdentifier, error) {
	out := make([]bridge.DeletedObjectIdentifier, 0, len(objs))
	for i, obj := range objs {
		err := c.DeleteCloudObject(ctx, entity, clouds[i], obj, nil)
		if err != nil && !errors.Is(err, bridge.ErrNotFound) {
			return out, err
		}
		out = append(out, bridge.DeletedObjectIdentifier{
			Entity:          entity.Name,
			CloudIdentifier: bridge.Identifier(entity, obj),
		})
	}
	c.logger.Debug("bulk deleted", "entity", entity.Name, "count", len(out))
	return out, nil
}

func (c *Connection) collectionPath(entity *bridge.EntityDescription, obj any, userInfo bridge.UserInfo) string {
	if override, ok := userInfo.URLOverride(); ok {
		return c.SubstitutePath(obj, override)
	}
	return c.SubstitutePath(obj, entity.RestBaseURL)
}

func (c *Connection) objectPath(entity *bridge.EntityDescription, obj any, userInfo bridge.UserInfo) string {
	if override, ok := userInfo.URLOverride(); ok {
		return c.SubstitutePath(obj, override)
	}
	base := strings.TrimRight(c.SubstitutePath(obj, entity.RestBaseURL), "/")
	return base + "/" + url.PathEscape(bridge.Identifier(entity, obj))
}

// fetchPath picks the path for a fetch: the override, the relationship's own
// path when the predicate names a related object, or the collection path with
// the predicate as a query parameter.
func (c *Connection) fetchPath(entity *bridge.EntityDescription, predicate *bridge.Predicate, userInfo bridge.UserInfo) (string, url.Values) {
	rel, related, isRelationship := c.registry.RelationshipPredicate(entity, predicate)

	if override, ok := userInfo.URLOverride(); ok {
		var subject any
		if isRelationship {
			subject = related
		}
		return c.SubstitutePath(subject, override), nil
	}

	if isRelationship {
		template := rel.RestBaseURL
		if inverse, ok := c.registry.InverseOf(rel); ok && inverse.RestBaseURL != "" {
			template = inverse.RestBaseURL
		}
		if template != "" {
			return c.SubstitutePath(related, template), nil
		}
	}

	path := c.SubstitutePath(nil, entity.RestBaseURL)
	if predicate == nil {
		return path, nil
	}

	params := url.Values{}
	switch {
	case isRelationship && rel.KeyPath != "":
		if dest, ok := c.registry.Entity(rel.Destination); ok {
			params.Set(c.mapping.CloudKey(rel.KeyPath), bridge.Identifier(dest, related))
		}
	case !isRelationship:
		params.Set(c.mapping.CloudKey(predicate.Key), bridge.FormatValue(predicate.Value))
	}
	return path, params
}

// cloudObjects returns the dictionaries of an array payload.
func cloudObjects(payload any) ([]bridge.CloudObject, error) {
	switch v := payload.(type) {
	case nil:
		return []bridge.CloudObject{}, nil
	case map[string]any:
		return []bridge.CloudObject{v}, nil
	case []any:
		out := make([]bridge.CloudObject, 0, len(v))
		for i, element := range v {
			dict, ok := element.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want object", bridge.ErrMalformedPayload, i, element)
			}
			out = append(out, dict)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: payload is %T, want array", bridge.ErrMalformedPayload, payload)
	}
}

// cloudObject returns a dictionary payload.
func cloudObject(payload any) (bridge.CloudObject, error) {
	dict, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %T, want object", bridge.ErrMalformedPayload, payload)
	}
	return dict, nil
}
