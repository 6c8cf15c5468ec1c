// Package rest talks to REST backends.
//
// Connection implements bridge.CloudConnection for persistence-backed objects.
// Client forwards CRUD for JSON-backed objects and patches them in place:
//
//	c := rest.NewClient(rest.NewHTTPSession(cfg), nil)
//	comments, err := rest.FetchRelations[Comment](ctx, c, post, "/posts/:id/comments")
//
// Both sit on a Session; HTTPSession is the net/http implementation.
package rest
