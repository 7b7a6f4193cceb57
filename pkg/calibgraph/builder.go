package calibgraph

import (
	"fmt"
	"strings"
)

// Builder accumulates vertices and edges until Finalize freezes them into a
// Graph. Calls that are wrong on their own (duplicate name, self edge, second
// loop) fail immediately; everything that depends on the whole structure is
// reported by Finalize.
//
// Builder is NOT thread-safe. Use a single goroutine to construct the graph.
//
// Example:
//
//	b := calibgraph.NewBuilder("single_qubit_tuneup")
//	_ = b.AddVertex(resonatorSpec)
//	_ = b.AddVertex(rabi)
//	_ = b.AddVertex(ramsey)
//	_ = b.Connect("resonator_spec", "rabi")
//	_ = b.Connect("rabi", "ramsey")
//	_ = b.Loop("resonator_spec", 2, false)
//	graph, err := b.Finalize()
type Builder struct {
	name      string
	cfg       vertexConfig
	order     []string
	vertices  map[string]Vertex
	edges     []Edge
	loops     map[string]*Edge
	finalized bool
}

// NewBuilder starts a new graph.
func NewBuilder(name string, opts ...VertexOption) *Builder {
	return &Builder{
		name:     name,
		cfg:      newVertexConfig(opts),
		vertices: make(map[string]Vertex),
		loops:    make(map[string]*Edge),
	}
}

// Build runs fn against a new Builder and finalizes it when fn returns.
// Nested subgraphs are built with their own Build call and added to the
// parent with AddVertex.
//
// Example:
//
//	graph, err := calibgraph.Build("tuneup", func(b *calibgraph.Builder) error {
//	    return errors.Join(
//	        b.AddVertex(rabi),
//	        b.AddVertex(ramsey),
//	        b.Connect("rabi", "ramsey"),
//	    )
//	})
func Build(name string, fn func(*Builder) error, opts ...VertexOption) (*Graph, error) {
	b := NewBuilder(name, opts...)
	if err := fn(b); err != nil {
		return nil, err
	}
	return b.Finalize()
}

// Name returns the name of the graph being built.
func (b *Builder) Name() string {
	return b.name
}

// AddVertex adds a node or a finalized subgraph.
func (b *Builder) AddVertex(v Vertex) error {
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if g, isGraph := v.(*Graph); v == nil || (isGraph && g == nil) {
		return fmt.Errorf("%w: nil", ErrInvalidVertex)
	}
	name := v.Name()
	if name == "" || strings.ContainsAny(name, " \t\n\r/") {
		return fmt.Errorf("%w: name %q", ErrInvalidVertex, name)
	}
	switch vv := v.(type) {
	case *Graph:
		if !vv.Finalized() {
			return fmt.Errorf("%w: subgraph %s", ErrNotFinalized, name)
		}
	case Node:
	default:
		return fmt.Errorf("%w: %s is neither a Node nor a *Graph", ErrInvalidVertex, name)
	}
	if _, exists := b.vertices[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVertex, name)
	}
	b.vertices[name] = v
	b.order = append(b.order, name)
	return nil
}

// EdgeOption configures an edge.
type EdgeOption func(*Edge)

// WithCondition sets the operational condition of an edge.
// Setting any condition, even Always(), declares the edge as deliberately
// sharing its scenario with sibling edges.
func WithCondition(c Condition) EdgeOption {
	return func(e *Edge) {
		if c != nil {
			e.Condition = c
			e.explicit = true
		}
	}
}

// WithScenario sets which outcome partition the edge carries.
func WithScenario(o Outcome) EdgeOption {
	return func(e *Edge) {
		e.Scenario = o
	}
}

// Connect adds an edge carrying successful targets from src to dst.
func (b *Builder) Connect(src, dst string, opts ...EdgeOption) error {
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if src == dst {
		return fmt.Errorf("%w: %s (use Loop)", ErrSelfEdge, src)
	}
	e := Edge{From: src, To: dst, Scenario: OutcomeSuccessful, Condition: Always()}
	for _, opt := range opts {
		opt(&e)
	}
	b.edges = append(b.edges, e)
	return nil
}

// ConnectOnFailure adds an edge carrying failed targets from src to dst.
func (b *Builder) ConnectOnFailure(src, dst string, opts ...EdgeOption) error {
	return b.Connect(src, dst, append([]EdgeOption{WithScenario(OutcomeFailed)}, opts...)...)
}

// Loop lets a vertex retry the targets that failed it, up to maxIterations
// extra runs (negative for unbounded). With onFailure, targets still looping
// when the limit is reached are routed downstream as failed.
//
// WithScenario and WithCondition change which targets are retried.
func (b *Builder) Loop(vertex string, maxIterations int, onFailure bool, opts ...EdgeOption) error {
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if _, exists := b.loops[vertex]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLoop, vertex)
	}
	e := &Edge{
		From:      vertex,
		To:        vertex,
		Scenario:  OutcomeFailed,
		Condition: Always(),
		Loop:      &LoopCondition{MaxIterations: maxIterations, OnFailure: onFailure},
	}
	for _, opt := range opts {
		opt(e)
	}
	b.loops[vertex] = e
	return nil
}
