package calibgraph

import (
	"errors"
	"fmt"
	"slices"
)

// Finalize validates the accumulated structure and freezes it into a Graph.
// Multiple problems are joined together. On error the builder stays open.
//
// Validation checks:
//  1. At least one vertex
//  2. Every edge and loop references an added vertex
//  3. No duplicate (source, destination, scenario)
//  4. Edges sharing a source and scenario all carry explicit conditions
//  5. Non-loop edges are acyclic
func (b *Builder) Finalize() (*Graph, error) {
	if b.finalized {
		return nil, ErrAlreadyFinalized
	}

	var errs []error

	if len(b.order) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEmptyGraph, b.name))
	}

	type edgeKey struct {
		from, to string
		scenario Outcome
	}
	seen := make(map[edgeKey]bool)
	for _, e := range b.edges {
		for _, end := range []string{e.From, e.To} {
			if _, ok := b.vertices[end]; !ok {
				errs = append(errs, fmt.Errorf("%w: edge %s -> %s references %s", ErrVertexNotFound, e.From, e.To, end))
			}
		}
		key := edgeKey{e.From, e.To, e.Scenario}
		if seen[key] {
			errs = append(errs, fmt.Errorf("%w: %s -> %s (%s)", ErrDuplicateEdge, e.From, e.To, e.Scenario))
		}
		seen[key] = true
	}
	for _, name := range b.loopOrder() {
		if _, ok := b.vertices[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: loop on %s", ErrVertexNotFound, name))
		}
	}

	errs = append(errs, b.checkAmbiguous()...)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := b.buildGraph()
	if cyclic := g.cyclicVertices(); len(cyclic) > 0 {
		return nil, fmt.Errorf("%w: through %v", ErrCycle, cyclic)
	}

	b.finalized = true
	return g, nil
}

// loopOrder returns looped vertex names in a stable order.
func (b *Builder) loopOrder() []string {
	names := make([]string, 0, len(b.loops))
	for name := range b.loops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (b *Builder) checkAmbiguous() []error {
	type group struct {
		from     string
		scenario Outcome
	}
	counts := make(map[group]int)
	implicit := make(map[group]bool)
	var order []group
	for _, e := range b.edges {
		key := group{e.From, e.Scenario}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
		if !e.explicit {
			implicit[key] = true
		}
	}

	var errs []error
	for _, key := range order {
		if counts[key] > 1 && implicit[key] {
			errs = append(errs, fmt.Errorf("%w: %d %s edges leave %s without explicit conditions",
				ErrAmbiguousEdges, counts[key], key.scenario, key.from))
		}
	}
	return errs
}

func (b *Builder) buildGraph() *Graph {
	g := &Graph{
		name:      b.name,
		cfg:       b.cfg,
		finalized: true,
		order:     slices.Clone(b.order),
		index:     make(map[string]int, len(b.order)),
		vertices:  make(map[string]Vertex, len(b.order)),
		edges:     slices.Clone(b.edges),
		out:       make(map[string][]int),
		preds:     make(map[string][]string),
		loops:     make(map[string]*Edge, len(b.loops)),
	}
	for i, name := range g.order {
		g.index[name] = i
		g.vertices[name] = b.vertices[name]
	}
	for name, loop := range b.loops {
		cp := *loop
		g.loops[name] = &cp
	}
	for i, e := range g.edges {
		g.out[e.From] = append(g.out[e.From], i)
		if !slices.Contains(g.preds[e.To], e.From) {
			g.preds[e.To] = append(g.preds[e.To], e.From)
		}
	}
	for _, name := range g.order {
		slices.SortFunc(g.preds[name], func(a, c string) int { return g.index[a] - g.index[c] })
		if len(g.preds[name]) == 0 {
			g.roots = append(g.roots, name)
		}
		if len(g.out[name]) == 0 {
			g.leaves = append(g.leaves, name)
		}
	}
	return g
}

// cyclicVertices runs Kahn's algorithm over non-loop edges and returns the
// vertices left on a cycle, in insertion order.
func (g *Graph) cyclicVertices() []string {
	indegree := make(map[string]int, len(g.order))
	for _, name := range g.order {
		indegree[name] = len(g.preds[name])
	}

	queue := g.Roots()
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.Successors(current) {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited == len(g.order) {
		return nil
	}

	var cyclic []string
	for _, name := range g.order {
		if indegree[name] > 0 {
			cyclic = append(cyclic, name)
		}
	}
	return cyclic
}
