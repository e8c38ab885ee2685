package flow

import "errors"

// Model errors
var (
	// ErrUnknownNodeType indicates a node type outside the closed set of node kinds.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNodeNotFound indicates that a node id does not exist in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNodeID indicates that a node id is already taken.
	ErrDuplicateNodeID = errors.New("duplicate node id")
)

// Edge errors
var (
	// ErrInvalidEdge indicates an edge without a source or target.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrDuplicateEdgeID indicates that an edge id is already taken.
	ErrDuplicateEdgeID = errors.New("duplicate edge id")
)
