package calibgraph

import (
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
)

// Vertex is anything that can be placed in a graph: a Node or a nested *Graph.
// Names are unique within the containing graph.
type Vertex interface {
	Name() string
	Description() string
}

// ParameterHolder is implemented by vertices that carry parameter values.
// The values are recorded with every snapshot of the vertex.
type ParameterHolder interface {
	Parameters() params.Values
}

// Node is an atomic unit of calibration work.
//
// Run executes the procedure against targets and reports every target as
// either successful or failed. A returned error means the procedure itself
// broke (instrument fault, bad parameters); the orchestrator then treats all
// attempted targets as failed.
//
// Run must honour ctx cancellation at its own safe points.
type Node interface {
	Vertex
	Run(ctx Context, targets []string) (RunSummary, error)
}

// RunSummary partitions the targets a node ran against.
type RunSummary struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// AllSuccessful reports every target as successful.
func AllSuccessful(targets []string) RunSummary {
	return RunSummary{Successful: NormalizeTargets(targets)}
}

// AllFailed reports every target as failed.
func AllFailed(targets []string) RunSummary {
	return RunSummary{Failed: NormalizeTargets(targets)}
}

// SummaryFromOutcomes builds a RunSummary from a per-target outcome map.
func SummaryFromOutcomes(outcomes map[string]Outcome) RunSummary {
	return RunSummary{
		Successful: targetsWith(outcomes, OutcomeSuccessful),
		Failed:     targetsWith(outcomes, OutcomeFailed),
	}
}

// normalize maps every input target to exactly one outcome.
// A target listed in neither partition, or in both, is failed. Targets the
// node reported that were not part of the input are returned as unknown.
func (s RunSummary) normalize(targets []string) (outcomes map[string]Outcome, unknown []string) {
	successful := NormalizeTargets(s.Successful)
	failed := NormalizeTargets(s.Failed)

	outcomes = make(map[string]Outcome, len(targets))
	for _, t := range targets {
		if containsTarget(successful, t) && !containsTarget(failed, t) {
			outcomes[t] = OutcomeSuccessful
		} else {
			outcomes[t] = OutcomeFailed
		}
	}
	for _, t := range unionTargets(successful, failed) {
		if !containsTarget(targets, t) {
			unknown = append(unknown, t)
		}
	}
	return outcomes, unknown
}

// RunFunc is the signature of a node procedure.
//
// Example:
//
//	func rabi(ctx calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
//	    ctx.Logger().Info("sweeping drive amplitude")
//	    return calibgraph.AllSuccessful(targets), nil
//	}
type RunFunc func(ctx Context, targets []string) (RunSummary, error)

type vertexConfig struct {
	description string
	parameters  params.Values
	aggregator  AggregateFunc
}

// VertexOption configures a node or a graph.
type VertexOption func(*vertexConfig)

// WithDescription sets the human-readable description.
func WithDescription(description string) VertexOption {
	return func(c *vertexConfig) {
		c.description = description
	}
}

// WithParameters attaches parameter values.
func WithParameters(values params.Values) VertexOption {
	return func(c *vertexConfig) {
		c.parameters = values
	}
}

// WithAggregator sets how a graph folds the outcomes its targets stopped
// with into one outcome per target. Ignored for nodes. Default:
// UnanimousSuccess.
func WithAggregator(fn AggregateFunc) VertexOption {
	return func(c *vertexConfig) {
		if fn != nil {
			c.aggregator = fn
		}
	}
}

func newVertexConfig(opts []VertexOption) vertexConfig {
	cfg := vertexConfig{aggregator: UnanimousSuccess}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type funcNode struct {
	name string
	cfg  vertexConfig
	fn   RunFunc
}

// NewNode adapts a function into a Node.
// Panics if fn is nil.
func NewNode(name string, fn RunFunc, opts ...VertexOption) Node {
	if fn == nil {
		panic("calibgraph: node function cannot be nil")
	}
	return &funcNode{name: name, cfg: newVertexConfig(opts), fn: fn}
}

func (n *funcNode) Name() string              { return n.name }
func (n *funcNode) Description() string       { return n.cfg.description }
func (n *funcNode) Parameters() params.Values { return n.cfg.parameters }

func (n *funcNode) Run(ctx Context, targets []string) (RunSummary, error) {
	return n.fn(ctx, targets)
}
