// Package bridge lets model objects perform CRUD against a REST backend.
//
// Objects are described once in a Registry: their collection path, identifier
// property, and relationships. A CloudBridge pairs a CloudConnection (the
// backend) with a DatabaseAdapter (the local store) and keeps both in step.
//
// Path templates address objects by property:
//
//	bridge.Substitute(post, "/posts/:id/comments", nil) // "/posts/42/comments"
//
// The generic forwarders narrow results to the caller's type:
//
//	post, err := bridge.Create(ctx, b, &Post{Title: "hello"})
//	comments, err := bridge.FetchRelatedObjects[*Comment](ctx, b, post, "comments")
//
// Results of the wrong type surface as ErrUnexpectedResultType. Relationship
// walks whose inverse is not to-one panic, since the model itself is wrong.
//
// Properties are read through Valuer when a type implements it, otherwise
// field by field under the struct's JSON names.
//
// An OfflineBridge keeps working without the backend. While offline it
// records changes to OfflineCapable objects in the DatabaseAdapter, and
// ReenableOnlineMode replays them through a BulkCloudConnection:
//
//	b.EnableOfflineMode()
//	note, err := bridge.Create(ctx, b, &Note{ID: "n1"}) // stored locally, pending create
//	err = b.ReenableOnlineMode(ctx)
package bridge
