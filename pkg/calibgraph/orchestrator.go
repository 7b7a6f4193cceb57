package calibgraph

import (
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
)

// Orchestrator traverses finalized graphs.
//
// An Orchestrator may run several traversals over its lifetime; history item
// IDs keep increasing across them. Traversals themselves are single-threaded.
type Orchestrator struct {
	cfg    orchestratorConfig
	lastID atomic.Int64
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	cfg := defaultOrchestratorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Orchestrator{cfg: cfg}
}

// SkipFailed reports the execution error policy.
func (o *Orchestrator) SkipFailed() bool {
	return o.cfg.skipFailed
}

// Result is the outcome of a traversal.
type Result struct {
	RunID string
	Graph string
	// History holds every vertex execution, nested subgraphs included.
	History *History
	// Vertices holds the final state of every top-level vertex.
	Vertices map[string]VertexState
	// Outcomes is the graph-level outcome per initial target, computed by the
	// graph's AggregateFunc over the vertices where each target stopped.
	Outcomes map[string]Outcome
}

// SuccessfulTargets returns the targets the graph calibrated.
func (r *Result) SuccessfulTargets() []string {
	return targetsWith(r.Outcomes, OutcomeSuccessful)
}

// FailedTargets returns the targets the graph did not calibrate.
func (r *Result) FailedTargets() []string {
	return targetsWith(r.Outcomes, OutcomeFailed)
}

// Traverse runs g against targets.
//
// Roots are seeded with the targets. A vertex runs once all of its non-loop
// predecessors are terminal, with the union of the targets its incoming
// edges forwarded; vertices that become ready together run in AddVertex
// order. After each run the targets are routed along the outgoing edges
// whose scenario matches their outcome and whose condition accepts them.
//
// The returned Result is non-nil whenever g was traversable, even on error,
// so callers can inspect the state at the point of failure. Errors:
//   - *VertexError when a vertex fails and skip_failed is off
//   - *CancellationError when ctx is done
//   - *SnapshotError when snapshot failures are fatal
//
// Example:
//
//	o := calibgraph.NewOrchestrator(calibgraph.WithSkipFailed(true))
//	ctx := calibgraph.NewContext(context.Background())
//	result, err := o.Traverse(ctx, graph, []string{"q1", "q2"})
func (o *Orchestrator) Traverse(ctx Context, g *Graph, targets []string, opts ...RunOption) (result *Result, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !g.Finalized() {
		name := "<nil>"
		if g != nil {
			name = g.name
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFinalized, name)
	}

	cfg := runConfig{history: NewHistory()}
	for _, opt := range opts {
		opt(&cfg)
	}

	targets = NormalizeTargets(targets)
	runID := ctx.RunID()
	logger := ctx.Logger()
	startTime := time.Now()

	observability.LogTraversalStart(logger, runID, g.Name(), targets)

	spanCtx, span := o.cfg.spans.StartTraversalSpan(ctx, g.Name(), runID)
	defer func() {
		o.cfg.spans.EndSpanWithError(span, runErr)
	}()

	base := asExecutionContext(ctx).withParent(spanCtx).withGraph(g.Name())
	g.primeConditions()

	t := newTraversal(o, &cfg, base, g, g.Name(), 0)
	runErr = t.walk(targets)

	result = &Result{
		RunID:    runID,
		Graph:    g.Name(),
		History:  cfg.history,
		Vertices: t.states(),
		Outcomes: g.Aggregator()(targets, t.terminalOutcomes()),
	}

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	o.cfg.metrics.RecordTraversal(spanCtx, g.Name(), runErr == nil, duration)

	if runErr != nil {
		observability.LogTraversalError(logger, runID, runErr, durationMs, t.last)
	} else {
		observability.LogTraversalComplete(logger, runID, durationMs, t.executed, len(result.FailedTargets()))
	}
	return result, runErr
}

func (t *traversal) states() map[string]VertexState {
	out := make(map[string]VertexState, len(t.vertices))
	for name, run := range t.vertices {
		out[name] = run.state()
	}
	return out
}

// terminalOutcomes returns, per vertex, the outcomes of the targets that
// stopped there.
func (t *traversal) terminalOutcomes() map[string]map[string]Outcome {
	out := make(map[string]map[string]Outcome, len(t.terminal))
	for name, outcomes := range t.terminal {
		out[name] = maps.Clone(outcomes)
	}
	return out
}
