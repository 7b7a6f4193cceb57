package calibgraph

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph is wrapped by every structural error, so callers can tell
// "the graph definition is wrong" apart from execution failures.
var ErrInvalidGraph = errors.New("invalid graph")

// Sentinel errors for graph building.
var (
	// ErrInvalidVertex indicates a nil vertex or one with an empty name.
	ErrInvalidVertex = fmt.Errorf("%w: invalid vertex", ErrInvalidGraph)

	// ErrDuplicateVertex indicates two vertices share a name.
	ErrDuplicateVertex = fmt.Errorf("%w: duplicate vertex", ErrInvalidGraph)

	// ErrVertexNotFound indicates an edge references a vertex that was never added.
	ErrVertexNotFound = fmt.Errorf("%w: vertex not found", ErrInvalidGraph)

	// ErrSelfEdge indicates Connect was called with the same source and destination.
	// Use Loop for retries.
	ErrSelfEdge = fmt.Errorf("%w: self edge", ErrInvalidGraph)

	// ErrDuplicateLoop indicates a second Loop on the same vertex.
	ErrDuplicateLoop = fmt.Errorf("%w: duplicate loop", ErrInvalidGraph)

	// ErrDuplicateEdge indicates the same (source, destination, scenario) twice.
	ErrDuplicateEdge = fmt.Errorf("%w: duplicate edge", ErrInvalidGraph)

	// ErrAmbiguousEdges indicates several edges leave a vertex for the same
	// scenario and at least one of them has no explicit condition.
	ErrAmbiguousEdges = fmt.Errorf("%w: ambiguous edges", ErrInvalidGraph)

	// ErrCycle indicates a cycle among non-loop edges.
	ErrCycle = fmt.Errorf("%w: cycle", ErrInvalidGraph)

	// ErrEmptyGraph indicates Finalize was called without vertices.
	ErrEmptyGraph = fmt.Errorf("%w: no vertices", ErrInvalidGraph)

	// ErrAlreadyFinalized indicates a structural call after Finalize.
	ErrAlreadyFinalized = fmt.Errorf("%w: already finalized", ErrInvalidGraph)

	// ErrNotFinalized indicates a graph that did not come out of Finalize.
	ErrNotFinalized = fmt.Errorf("%w: not finalized", ErrInvalidGraph)
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Traverse was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidTransition indicates a vertex status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid vertex status transition")

	// ErrVertexTimeout indicates a node wrapped by WithTimeout ran past its deadline.
	ErrVertexTimeout = errors.New("vertex timed out")
)

// VertexError wraps an error with vertex context.
// Traverse returns it when a vertex fails and skip_failed is off.
type VertexError struct {
	// Vertex is the name of the vertex that failed.
	Vertex string
	// Graph is the path of the graph containing the vertex ("outer/inner").
	Graph string
	// Err is the underlying error from the vertex.
	Err error
}

// Error implements the error interface.
func (e *VertexError) Error() string {
	return fmt.Sprintf("vertex %s in %s: %v", e.Vertex, e.Graph, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *VertexError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a node or a condition.
type PanicError struct {
	// Vertex is the vertex that panicked, or the edge source for conditions.
	Vertex string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("vertex %s panicked: %v", e.Vertex, e.Value)
}

// CancellationError reports a traversal stopped by its context.
type CancellationError struct {
	// Vertex is the vertex that was about to run or was running.
	Vertex string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true if cancellation was observed inside the vertex.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during vertex %s: %v", e.Vertex, e.Cause)
	}
	return fmt.Sprintf("cancelled before vertex %s: %v", e.Vertex, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// SnapshotError wraps a snapshot failure when snapshot failures are fatal.
type SnapshotError struct {
	Vertex string
	Err    error
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot of vertex %s: %v", e.Vertex, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SnapshotError) Unwrap() error {
	return e.Err
}
