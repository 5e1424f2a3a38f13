package world

import "errors"

var (
	ErrConfig     = errors.New("world: invalid configuration")
	ErrStarted    = errors.New("world: already started")
	ErrNotStarted = errors.New("world: not started")
	ErrDisposed   = errors.New("world: disposed")
	ErrNotRoot    = errors.New("world: world node has a parent")
	ErrForeign    = errors.New("world: particle or layer belongs to another world")
)
