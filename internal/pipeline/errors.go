package pipeline

import "errors"

var (
	// ErrLayout indicates a layout without inputs or with duplicate field names.
	ErrLayout = errors.New("pipeline: invalid layout")

	// ErrCapacity indicates a zero or negative records-per-buffer capacity.
	ErrCapacity = errors.New("pipeline: capacity must be positive")

	// ErrDetached indicates access to a buffer that is currently owned by a
	// worker.
	ErrDetached = errors.New("pipeline: buffer is detached")

	// ErrUnknownField indicates a field name missing from the layout.
	ErrUnknownField = errors.New("pipeline: unknown field")
)
