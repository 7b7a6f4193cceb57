package calibgraph

import (
	"errors"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/snapshot"
)

// traversal is the state of one pass over one graph. Nested subgraphs get
// their own traversal sharing the run configuration and history.
type traversal struct {
	o      *Orchestrator
	run    *runConfig
	ctx    *executionContext
	graph  *Graph
	path   string
	depth  int
	logger *slog.Logger

	vertices map[string]*vertexRun
	pending  map[string][]string
	queued   map[string]bool
	queue    []string
	// terminal holds, per vertex, the targets it ran that no edge took
	// further, with their last outcome.
	terminal map[string]map[string]Outcome

	executed int
	last     string
}

func newTraversal(o *Orchestrator, run *runConfig, ctx *executionContext, g *Graph, path string, depth int) *traversal {
	t := &traversal{
		o:        o,
		run:      run,
		ctx:      ctx,
		graph:    g,
		path:     path,
		depth:    depth,
		logger:   ctx.logger,
		vertices: make(map[string]*vertexRun, len(g.order)),
		pending:  make(map[string][]string),
		queued:   make(map[string]bool),
		terminal: make(map[string]map[string]Outcome),
	}
	for _, name := range g.order {
		t.vertices[name] = newVertexRun(name)
	}
	return t
}

func (t *traversal) walk(targets []string) error {
	for _, root := range t.graph.roots {
		t.pending[root] = targets
	}
	t.enqueue(t.graph.roots...)

	for len(t.queue) > 0 {
		name := t.queue[0]
		t.queue = t.queue[1:]
		t.queued[name] = false

		if err := t.ctx.Err(); err != nil {
			return &CancellationError{Vertex: name, Cause: err}
		}
		if err := t.step(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *traversal) enqueue(names ...string) {
	for _, name := range names {
		t.queue = append(t.queue, name)
		t.queued[name] = true
	}
}

// requeue puts a retried vertex at the front of the queue.
func (t *traversal) requeue(name string) {
	t.queue = append([]string{name}, t.queue...)
	t.queued[name] = true
}

// release enqueues the successors of name that just became ready.
// Graph.Successors is in insertion order, which is the tie-break.
func (t *traversal) release(name string) {
	for _, succ := range t.graph.Successors(name) {
		if t.ready(succ) {
			t.enqueue(succ)
		}
	}
}

func (t *traversal) ready(name string) bool {
	if t.vertices[name].status != StatusPending || t.queued[name] {
		return false
	}
	for _, pred := range t.graph.preds[name] {
		if !t.vertices[pred].status.IsTerminal() {
			return false
		}
	}
	return true
}

// step runs one pass of a vertex and routes its targets.
func (t *traversal) step(name string) error {
	run := t.vertices[name]
	targets := t.pending[name]
	delete(t.pending, name)

	if len(targets) == 0 {
		return t.skip(name, run)
	}

	if err := run.start(targets); err != nil {
		return err
	}
	t.last = name
	t.notifyStarted(run)

	vertex := t.graph.vertices[name]
	var (
		outcomes map[string]Outcome
		execErr  error
	)
	if sub, ok := vertex.(*Graph); ok {
		outcomes, execErr = t.executeSubgraph(sub, run)
	} else {
		outcomes, execErr = t.executeNode(vertex.(Node), run)
	}
	t.executed++

	var cancelled *CancellationError
	if errors.As(execErr, &cancelled) {
		if err := t.complete(vertex, run, outcomes, execErr); err != nil {
			return err
		}
		return execErr
	}
	var snapErr *SnapshotError
	if errors.As(execErr, &snapErr) {
		return execErr
	}

	if execErr != nil {
		execErr = &VertexError{Vertex: name, Graph: t.path, Err: execErr}
	}
	if err := t.complete(vertex, run, outcomes, execErr); err != nil {
		return err
	}
	if execErr != nil && !t.o.cfg.skipFailed {
		return execErr
	}

	retried, err := t.route(run, outcomes)
	if err != nil {
		return err
	}
	if !retried {
		t.release(name)
	}
	return nil
}

// skip records a vertex that received no targets. It is not run.
func (t *traversal) skip(name string, run *vertexRun) error {
	if err := run.skip(); err != nil {
		return err
	}
	observability.LogVertexSkipped(t.logger, name)

	vertex := t.graph.vertices[name]
	now := time.Now()
	item := HistoryItem{
		Vertex:      name,
		Graph:       t.path,
		Description: vertex.Description(),
		RunStart:    now,
		RunEnd:      now,
		Status:      StatusSkipped,
		Attempt:     1,
	}
	if err := t.persist(vertex, &item); err != nil {
		return err
	}
	t.run.history.append(item)
	t.notifyFinished(run, &item)
	t.release(name)
	return nil
}

// executeNode runs a node with the vertex context and span, returning the
// normalized outcomes. On error every attempted target is failed.
func (t *traversal) executeNode(n Node, run *vertexRun) (map[string]Outcome, error) {
	name := run.name
	targets := run.targets

	spanCtx, span := t.o.cfg.spans.StartVertexSpan(t.ctx, name, run.retries+1, targets)
	vctx := t.ctx.withVertex(name, run.retries+1).withParent(spanCtx)

	observability.LogVertexStart(vctx.logger, name, targets)
	start := time.Now()

	summary, err := runNode(vctx, n, targets)

	duration := time.Since(start)

	var outcomes map[string]Outcome
	if err != nil {
		outcomes = uniformOutcomes(targets, OutcomeFailed)
		if ctxErr := t.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = &CancellationError{Vertex: name, Cause: ctxErr, WasExecuting: true}
		}
	} else {
		var unknown []string
		outcomes, unknown = summary.normalize(targets)
		if len(unknown) > 0 {
			vctx.logger.Warn("vertex reported targets it was not given",
				slog.String("vertex", name),
				slog.Any("unknown", unknown))
		}
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

// runNode calls n.Run, turning a panic into a *PanicError.
func runNode(ctx Context, n Node, targets []string) (summary RunSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary = RunSummary{}
			err = &PanicError{
				Vertex: n.Name(),
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return n.Run(ctx, targets)
}

// uniformOutcomes assigns o to every target.
func uniformOutcomes(targets []string, o Outcome) map[string]Outcome {
	out := make(map[string]Outcome, len(targets))
	for _, t := range targets {
		out[t] = o
	}
	return out
}

// complete moves the vertex to its terminal status, records the history
// item, and notifies the observer.
func (t *traversal) complete(vertex Vertex, run *vertexRun, outcomes map[string]Outcome, execErr error) error {
	var err error
	if execErr != nil {
		err = run.fail(execErr, outcomes)
	} else {
		err = run.finish(outcomes)
	}
	if err != nil {
		return err
	}

	item := HistoryItem{
		Vertex:      run.name,
		Graph:       t.path,
		Description: vertex.Description(),
		RunStart:    run.runStart,
		RunEnd:      run.runEnd,
		Status:      run.status,
		Attempt:     run.retries + 1,
		Targets:     run.targets,
		Outcomes:    outcomes,
		Err:         execErr,
	}
	if err := t.persist(vertex, &item); err != nil {
		return err
	}
	t.run.history.append(item)
	t.notifyFinished(run, &item)
	return nil
}

// persist saves a snapshot of the item and assigns its ID.
func (t *traversal) persist(vertex Vertex, item *HistoryItem) error {
	store := t.o.cfg.store
	if store == nil {
		item.ID = t.o.lastID.Add(1)
		return nil
	}

	snap := snapshot.New(t.ctx.runID, item.Vertex, item.Status.String(), item.Targets, outcomeStrings(item.Outcomes))
	snap.Graph = item.Graph
	snap.Description = item.Description
	snap.Attempt = item.Attempt
	snap.RunStart = item.RunStart
	snap.RunEnd = item.RunEnd
	if item.Err != nil {
		snap.Error = item.Err.Error()
	}
	if holder, ok := vertex.(ParameterHolder); ok {
		snap.Parameters = holder.Parameters().Raw()
	}

	index, err := store.Save(snap)
	if err != nil {
		if t.o.cfg.snapshotFatal {
			return &SnapshotError{Vertex: item.Vertex, Err: err}
		}
		observability.LogSnapshotError(t.logger, item.Vertex, err)
		item.ID = 0
		return nil
	}
	item.ID = index

	if data, err := snap.Marshal(); err == nil {
		observability.LogSnapshot(t.logger, item.Vertex, index, len(data))
		t.o.cfg.metrics.RecordSnapshot(t.ctx, item.Vertex, int64(len(data)))
	}
	return nil
}

// route forwards the targets of the last pass along the outgoing edges, or
// sends the loop targets back for another pass. It reports whether the
// vertex was retried.
func (t *traversal) route(run *vertexRun, outcomes map[string]Outcome) (bool, error) {
	name := run.name
	state := run.state()
	routed := maps.Clone(outcomes)

	if loop, ok := t.graph.loops[name]; ok {
		looping := t.filter(*loop, state, targetsWith(outcomes, loop.Scenario))
		if len(looping) > 0 {
			if loop.Loop.allows(run.retries) {
				for _, target := range looping {
					delete(routed, target)
				}
				t.settle(name, routed, t.forward(name, state, routed))

				if err := run.retry(); err != nil {
					return false, err
				}
				t.pending[name] = looping
				t.requeue(name)

				observability.LogLoopRetry(t.logger, name, run.retries+1, looping)
				t.o.cfg.metrics.RecordLoopRetry(t.ctx, name, len(looping))
				return true, nil
			}

			observability.LogLoopExhausted(t.logger, name, loop.Loop.MaxIterations, looping)
			if loop.Loop.OnFailure {
				for _, target := range looping {
					routed[target] = OutcomeFailed
				}
			}
		}
	}

	t.settle(name, routed, t.forward(name, state, routed))
	return false, nil
}

// forward unions the accepted targets of every outgoing edge into the
// destination's pending set and returns every target some edge took.
// Edges are visited in declaration order.
func (t *traversal) forward(name string, state VertexState, outcomes map[string]Outcome) map[string]bool {
	taken := make(map[string]bool)
	for _, i := range t.graph.out[name] {
		e := t.graph.edges[i]
		accepted := t.filter(e, state, targetsWith(outcomes, e.Scenario))
		if len(accepted) > 0 {
			t.pending[e.To] = unionTargets(t.pending[e.To], accepted)
		}
		for _, target := range accepted {
			taken[target] = true
		}
	}
	return taken
}

// settle records the targets of name that stop there with the outcome they
// hold. A later pass of the same vertex overwrites its earlier entry.
func (t *traversal) settle(name string, outcomes map[string]Outcome, taken map[string]bool) {
	for target, o := range outcomes {
		if taken[target] {
			continue
		}
		if t.terminal[name] == nil {
			t.terminal[name] = make(map[string]Outcome)
		}
		t.terminal[name][target] = o
	}
}

// filter returns the candidates e's condition accepts, offered in sorted
// order. Condition errors drop the target.
func (t *traversal) filter(e Edge, state VertexState, candidates []string) []string {
	var accepted []string
	for _, target := range candidates {
		ok, err := evaluateCondition(e.Condition, state, target)
		if err != nil {
			observability.LogConditionError(t.logger, e.From, e.To, target, err)
			continue
		}
		if ok {
			accepted = append(accepted, target)
		}
	}
	return accepted
}

func (t *traversal) notifyStarted(run *vertexRun) {
	if t.run.observer == nil {
		return
	}
	t.run.observer.VertexStarted(VertexEvent{
		RunID:   t.ctx.runID,
		Graph:   t.path,
		Depth:   t.depth,
		Vertex:  run.name,
		Status:  run.status,
		Attempt: run.retries + 1,
		Targets: run.targets,
	})
}

func (t *traversal) notifyFinished(run *vertexRun, item *HistoryItem) {
	if t.run.observer == nil {
		return
	}
	t.run.observer.VertexFinished(VertexEvent{
		RunID:   t.ctx.runID,
		Graph:   t.path,
		Depth:   t.depth,
		Vertex:  run.name,
		Status:  run.status,
		Attempt: run.retries + 1,
		Targets: run.targets,
		Item:    item,
	})
}
