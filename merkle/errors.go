package merkle

import "errors"

var (
	// ErrNoLeaves indicates an attempt to build a tree from an empty leaf list.
	ErrNoLeaves = errors.New("merkle: no leaves")

	// ErrIndexOutOfRange indicates a proof was requested for a leaf index
	// outside the tree.
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
)
