package bridge

import "errors"

var (
	// ErrNotFound is returned when an object doesn't exist locally or a fetch yielded no object.
	ErrNotFound = errors.New("cloudbridge: object not found")

	// ErrUnexpectedResultType is returned when a result cannot be narrowed to the caller's type.
	ErrUnexpectedResultType = errors.New("cloudbridge: unexpected result type")

	// ErrUnknownEntity is returned when no entity description is registered for a name or object.
	ErrUnknownEntity = errors.New("cloudbridge: unknown entity")

	// ErrUnknownRelationship is returned when an entity has no relationship with the given name.
	ErrUnknownRelationship = errors.New("cloudbridge: unknown relationship")

	// ErrMalformedPayload is returned when a backend payload has the wrong shape or fails to decode.
	ErrMalformedPayload = errors.New("cloudbridge: malformed payload")

	// ErrMissingIdentifier is returned when an object or cloud object carries no identifier.
	ErrMissingIdentifier = errors.New("cloudbridge: missing identifier")

	// ErrOffline is returned for operations an OfflineBridge cannot perform while offline.
	ErrOffline = errors.New("cloudbridge: offline")

	// ErrCardinality is the panic value for walking a to-many relationship as to-one.
	ErrCardinality = errors.New("cloudbridge: relationship is to-many")

	// ErrInverseCardinality is the panic value for walking a relationship whose inverse is missing or to-many.
	ErrInverseCardinality = errors.New("cloudbridge: inverse relationship must exist and be to-one")
)
