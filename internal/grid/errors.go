package grid

import "errors"

var (
	// ErrBounds indicates bounds that do not straddle the origin on both axes.
	ErrBounds = errors.New("grid: bounds must straddle the origin on both axes")

	// ErrCellSize indicates a zero or negative cell size.
	ErrCellSize = errors.New("grid: cell size must be positive")
)
