package dynamo

import "errors"

var (
	// ErrParentNotFound is returned when a related parent doesn't exist or is deleted.
	// Only checked when Config.ValidateParents is set.
	ErrParentNotFound = errors.New("cloudbridge: parent entity not found")

	// ErrHasChildren is returned when deleting an entity whose Deny relationships have active children.
	ErrHasChildren = errors.New("cloudbridge: entity has active children")

	// ErrConcurrentModification is returned when the item changed between read and write.
	ErrConcurrentModification = errors.New("cloudbridge: entity was modified concurrently")
)
