package merkle

import "errors"

var (
	// ErrMalformedLeaf is returned when an operator address or reward cannot be ABI encoded.
	ErrMalformedLeaf = errors.New("malformed leaf")

	// ErrEmptyInput is returned when a tree is requested over zero values.
	ErrEmptyInput = errors.New("cannot build merkle tree from empty value list")

	// ErrDuplicateLeaf is returned when two values encode to the same leaf.
	ErrDuplicateLeaf = errors.New("duplicate leaf")

	// ErrLeafNotFound is returned when a proof is requested for a value that is not in the tree.
	// It is a negative membership result, not a fault of the tree.
	ErrLeafNotFound = errors.New("leaf not found in tree")

	// ErrCorruptTreeRecord is returned when a serialized tree fails self-consistency checks.
	ErrCorruptTreeRecord = errors.New("corrupt tree record")
)
