package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrAbsentNode indicates a handle that does not refer to a live node.
	ErrAbsentNode = errors.New("scene: node does not exist")

	// ErrNotAttached indicates removal of a node that has no parent.
	ErrNotAttached = errors.New("scene: node is not attached")

	// ErrCycle indicates an add that would make a node its own ancestor.
	ErrCycle = errors.New("scene: adding child would create a cycle")
)

// NodeError carries the tree context of a failed operation.
type NodeError struct {
	Op    string
	Node  Handle
	Type  string
	Layer Handle
	World Handle
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s node %d (%s, layer %d, world %d): %v",
		e.Op, e.Node, e.Type, e.Layer, e.World, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
