package registry

import "errors"

var (
	// ErrLocked indicates a mutation was attempted while the store is locked.
	ErrLocked = errors.New("registry: store is locked")

	// ErrNotMember indicates the index does not refer to an occupied slot.
	ErrNotMember = errors.New("registry: index is not a member")
)
