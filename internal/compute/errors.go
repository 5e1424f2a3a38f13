package compute

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevice       = errors.New("compute: no gpu device available")
	ErrUnknownProgram = errors.New("compute: program not registered")
	ErrBusy           = errors.New("compute: batch still in flight")
	ErrClosed         = errors.New("compute: executor closed")
	ErrProgram        = errors.New("compute: invalid program")
)

// WorkerError tags a failure with the index of the worker that reported it.
type WorkerError struct {
	Index int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("compute: worker %d: %v", e.Index, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
