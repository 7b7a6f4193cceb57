package registry

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
)

// Errors returned by Library lookups and registrations.
var (
	// ErrNotFound indicates no node or graph is registered under the name.
	ErrNotFound = errors.New("runnable not found")

	// ErrInvalidName indicates an empty runnable name.
	ErrInvalidName = errors.New("runnable name cannot be empty")
)

// GraphFactory builds a finalized graph. It is typically a function that
// calls calibgraph.Build.
type GraphFactory func() (*calibgraph.Graph, error)

type builtGraph struct {
	graph *calibgraph.Graph
	err   error
}

// Library holds the named nodes and graphs available for execution.
// Nodes and graphs share one namespace.
type Library struct {
	nodes  *Registry[string, calibgraph.Node]
	graphs *Registry[string, GraphFactory]
	built  *Registry[string, builtGraph]
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		nodes:  New[string, calibgraph.Node](),
		graphs: New[string, GraphFactory](),
		built:  New[string, builtGraph](),
	}
}

// AddNode registers a node under its own name.
func (l *Library) AddNode(n calibgraph.Node) error {
	if n == nil || n.Name() == "" {
		return ErrInvalidName
	}
	name := n.Name()
	if l.graphs.Has(name) {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if err := l.nodes.Add(name, n); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	return nil
}

// AddGraph registers a graph factory. The factory runs on first lookup.
func (l *Library) AddGraph(name string, factory GraphFactory) error {
	if name == "" || factory == nil {
		return ErrInvalidName
	}
	if l.nodes.Has(name) {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	if err := l.graphs.Add(name, factory); err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}
	return nil
}

// Node returns the node registered under name.
func (l *Library) Node(name string) (calibgraph.Node, error) {
	n, ok := l.nodes.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: node %s", ErrNotFound, name)
	}
	return n, nil
}

// Graph builds, or returns the cached build of, the graph registered under
// name. A factory error is cached too.
func (l *Library) Graph(name string) (*calibgraph.Graph, error) {
	factory, ok := l.graphs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: graph %s", ErrNotFound, name)
	}
	b := l.built.GetOrCreate(name, func() builtGraph {
		return build(factory)
	})
	if b.err != nil {
		return nil, fmt.Errorf("build graph %s: %w", name, b.err)
	}
	return b.graph, nil
}

// Rebuild runs the factory of name again and replaces the cached build,
// including a cached factory error.
func (l *Library) Rebuild(name string) (*calibgraph.Graph, error) {
	factory, ok := l.graphs.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: graph %s", ErrNotFound, name)
	}
	b := build(factory)
	l.built.Register(name, b)
	if b.err != nil {
		return nil, fmt.Errorf("build graph %s: %w", name, b.err)
	}
	return b.graph, nil
}

func build(factory GraphFactory) builtGraph {
	g, err := factory()
	if err == nil && !g.Finalized() {
		err = calibgraph.ErrNotFinalized
	}
	return builtGraph{graph: g, err: err}
}

// Remove unregisters the node or graph called name. Graphs already handed
// out stay usable.
func (l *Library) Remove(name string) error {
	if !l.nodes.Has(name) && !l.graphs.Has(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	l.nodes.Delete(name)
	l.graphs.Delete(name)
	l.built.Delete(name)
	return nil
}

// Runnable returns the node or graph registered under name.
func (l *Library) Runnable(name string) (calibgraph.Vertex, error) {
	if n, ok := l.nodes.Get(name); ok {
		return n, nil
	}
	if l.graphs.Has(name) {
		g, err := l.Graph(name)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Nodes returns the registered node names in order.
func (l *Library) Nodes() []string {
	return l.nodes.Keys()
}

// Graphs returns the registered graph names in order.
func (l *Library) Graphs() []string {
	return l.graphs.Keys()
}

// EachNode calls fn for every node in name order until fn returns false.
func (l *Library) EachNode(fn func(calibgraph.Node) bool) {
	l.nodes.Range(func(_ string, n calibgraph.Node) bool {
		return fn(n)
	})
}

// Len returns the number of registered nodes and graphs.
func (l *Library) Len() int {
	return l.nodes.Len() + l.graphs.Len()
}
