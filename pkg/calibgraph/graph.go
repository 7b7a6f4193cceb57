package calibgraph

import (
	"slices"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

// Edge connects two vertices of a graph.
type Edge struct {
	From string
	To   string
	// Scenario selects which outcome partition of From the edge carries.
	Scenario Outcome
	// Condition further filters the targets of that partition. Never nil.
	Condition Condition
	// Loop is set on loop edges, where To == From.
	Loop *LoopCondition

	explicit bool
}

// IsLoop reports whether the edge is a retry loop.
func (e Edge) IsLoop() bool {
	return e.Loop != nil
}

// LoopCondition bounds how often a vertex is retried.
type LoopCondition struct {
	// MaxIterations is the number of retries after the first run.
	// Negative means unbounded; the loop's condition must then end it.
	MaxIterations int
	// OnFailure routes targets still looping at exhaustion as failed,
	// whatever they last reported.
	OnFailure bool
}

// Unbounded reports whether the loop has no iteration limit.
func (l LoopCondition) Unbounded() bool {
	return l.MaxIterations < 0
}

// allows reports whether a vertex that has already been retried `retries`
// times may run again.
func (l LoopCondition) allows(retries int) bool {
	return l.Unbounded() || retries < l.MaxIterations
}

// AggregateFunc folds the outcomes of a traversal into one outcome per input
// target. terminal maps each vertex to the targets that stopped there, that
// is the targets it ran and no outgoing edge took further, with the outcome
// they last held. A leaf is terminal for every target it ran.
type AggregateFunc func(targets []string, terminal map[string]map[string]Outcome) map[string]Outcome

// UnanimousSuccess is the default AggregateFunc: a target is successful iff
// it stopped somewhere and was successful everywhere it stopped.
func UnanimousSuccess(targets []string, terminal map[string]map[string]Outcome) map[string]Outcome {
	out := make(map[string]Outcome, len(targets))
	for _, t := range targets {
		reached := false
		result := OutcomeSuccessful
		for _, outcomes := range terminal {
			o, ok := outcomes[t]
			if !ok {
				continue
			}
			reached = true
			if o == OutcomeFailed {
				result = OutcomeFailed
			}
		}
		if !reached {
			result = OutcomeFailed
		}
		out[t] = result
	}
	return out
}

// AnySuccess is an AggregateFunc under which a target is successful if it
// was successful at any vertex where it stopped.
func AnySuccess(targets []string, terminal map[string]map[string]Outcome) map[string]Outcome {
	out := make(map[string]Outcome, len(targets))
	for _, t := range targets {
		out[t] = OutcomeFailed
		for _, outcomes := range terminal {
			if o, ok := outcomes[t]; ok && o == OutcomeSuccessful {
				out[t] = OutcomeSuccessful
				break
			}
		}
	}
	return out
}

// Graph is a finalized, immutable calibration workflow.
// Create one with NewBuilder or Build. A *Graph is itself a Vertex and can be
// added to another graph as a nested subgraph.
//
// Graph is safe to share between goroutines, except that stateful
// conditions on its edges are primed by every traversal: do not traverse a
// graph carrying stateful conditions from two goroutines at once.
type Graph struct {
	name      string
	cfg       vertexConfig
	finalized bool

	order    []string // insertion order
	index    map[string]int
	vertices map[string]Vertex

	edges []Edge           // non-loop edges in declaration order
	out   map[string][]int // vertex -> indices into edges
	preds map[string][]string
	loops map[string]*Edge

	roots  []string
	leaves []string
}

// Name implements Vertex.
func (g *Graph) Name() string { return g.name }

// Description implements Vertex.
func (g *Graph) Description() string { return g.cfg.description }

// Parameters implements ParameterHolder.
func (g *Graph) Parameters() params.Values { return g.cfg.parameters }

// Aggregator returns the function folding terminal outcomes into graph outcomes.
func (g *Graph) Aggregator() AggregateFunc { return g.cfg.aggregator }

// Finalized reports whether the graph came out of Builder.Finalize.
func (g *Graph) Finalized() bool { return g != nil && g.finalized }

// Vertices returns vertex names in insertion order.
func (g *Graph) Vertices() []string {
	return slices.Clone(g.order)
}

// Vertex returns the vertex with the given name.
func (g *Graph) Vertex(name string) (Vertex, bool) {
	v, ok := g.vertices[name]
	return v, ok
}

// HasVertex checks if a vertex exists in the graph.
func (g *Graph) HasVertex(name string) bool {
	_, ok := g.vertices[name]
	return ok
}

// Edges returns all edges, non-loop edges first in declaration order, then
// loop edges in vertex insertion order.
func (g *Graph) Edges() []Edge {
	out := slices.Clone(g.edges)
	for _, name := range g.order {
		if loop, ok := g.loops[name]; ok {
			out = append(out, *loop)
		}
	}
	return out
}

// OutEdges returns the non-loop edges leaving a vertex in declaration order.
func (g *Graph) OutEdges(name string) []Edge {
	idx := g.out[name]
	out := make([]Edge, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.edges[i])
	}
	return out
}

// LoopOf returns the loop edge of a vertex, if any.
func (g *Graph) LoopOf(name string) (Edge, bool) {
	loop, ok := g.loops[name]
	if !ok {
		return Edge{}, false
	}
	return *loop, true
}

// Roots returns vertices without incoming non-loop edges, in insertion order.
func (g *Graph) Roots() []string {
	return slices.Clone(g.roots)
}

// Leaves returns vertices without outgoing non-loop edges, in insertion order.
func (g *Graph) Leaves() []string {
	return slices.Clone(g.leaves)
}

// Successors returns the distinct destinations of a vertex's non-loop edges,
// in insertion order.
func (g *Graph) Successors(name string) []string {
	var out []string
	for _, i := range g.out[name] {
		if to := g.edges[i].To; !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	slices.SortFunc(out, func(a, b string) int { return g.index[a] - g.index[b] })
	return out
}

// Predecessors returns the distinct sources of a vertex's incoming non-loop
// edges, in insertion order.
func (g *Graph) Predecessors(name string) []string {
	return slices.Clone(g.preds[name])
}

// Size returns the number of vertices, counting the contents of nested
// subgraphs in addition to the subgraph vertices themselves.
func (g *Graph) Size() int {
	n := len(g.order)
	for _, name := range g.order {
		if sub, ok := g.vertices[name].(*Graph); ok {
			n += sub.Size()
		}
	}
	return n
}

// primeConditions primes every stateful condition, recursing into subgraphs.
func (g *Graph) primeConditions() {
	for _, e := range g.edges {
		primeCondition(e.Condition)
	}
	for _, loop := range g.loops {
		primeCondition(loop.Condition)
	}
	for _, name := range g.order {
		if sub, ok := g.vertices[name].(*Graph); ok {
			sub.primeConditions()
		}
	}
}
