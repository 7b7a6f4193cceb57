package calibgraph

import (
	"errors"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
)

// executeSubgraph traverses a nested graph with the vertex's targets. Inner
// executions land in the shared history before the subgraph's own item; the
// subgraph's outcomes come from its AggregateFunc.
//
// Stateful conditions of the subgraph are not re-primed here: they keep
// their state for the whole top-level traversal, loop passes included.
func (t *traversal) executeSubgraph(sub *Graph, run *vertexRun) (map[string]Outcome, error) {
	name := run.name
	targets := run.targets
	path := t.path + "/" + name

	spanCtx, span := t.o.cfg.spans.StartVertexSpan(t.ctx, name, run.retries+1, targets)
	childCtx := t.ctx.withParent(spanCtx).withGraph(path)

	observability.LogVertexStart(t.logger, name, targets)
	start := time.Now()

	child := newTraversal(t.o, t.run, childCtx, sub, path, t.depth+1)
	err := child.walk(targets)

	duration := time.Since(start)

	var outcomes map[string]Outcome
	var snapErr *SnapshotError
	switch {
	case errors.As(err, &snapErr):
		t.o.cfg.spans.EndSpanWithError(span, err)
		return nil, err
	case err != nil:
		outcomes = uniformOutcomes(targets, OutcomeFailed)
	default:
		outcomes = sub.Aggregator()(targets, child.terminalOutcomes())
	}

	successful := len(targetsWith(outcomes, OutcomeSuccessful))
	t.o.cfg.metrics.RecordVertexExecution(spanCtx, name, duration, successful, len(outcomes)-successful, err)
	t.o.cfg.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogVertexError(t.logger, name, err)
	} else {
		observability.LogVertexComplete(t.logger, name, float64(duration.Milliseconds()), successful, len(outcomes)-successful)
	}
	return outcomes, err
}
