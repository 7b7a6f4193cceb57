package runstate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
)

// Tracker is the process-wide run state. Create one per process and share it
// between the executor and the reporting layer.
type Tracker struct {
	orchestrator *calibgraph.Orchestrator
	library      *registry.Library
	logger       *slog.Logger

	// submitMu serializes Submit so that validation, graph resolution, and
	// the idle check happen as one step.
	submitMu sync.Mutex

	mu       sync.RWMutex
	state    RunState
	history  *calibgraph.History
	cancel   context.CancelFunc
	done     chan struct{}
	progress *progressObserver
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithOrchestrator sets the orchestrator used by Submit.
// Default: calibgraph.NewOrchestrator().
func WithOrchestrator(o *calibgraph.Orchestrator) Option {
	return func(t *Tracker) {
		if o != nil {
			t.orchestrator = o
		}
	}
}

// WithLibrary sets the library SubmitByName resolves names from.
func WithLibrary(lib *registry.Library) Option {
	return func(t *Tracker) {
		t.library = lib
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates an idle tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		orchestrator: calibgraph.NewOrchestrator(),
		logger:       slog.Default(),
		history:      calibgraph.NewHistory(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin moves an idle tracker to running for a run executed elsewhere. It
// returns the new run id. Use Complete or Fail to end the run.
func (t *Tracker) Begin(runnable string, kind RunnableKind, targets []string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	runID := uuid.New().String()
	if err := t.beginLocked(runID, runnable, kind, targets, nil, nil); err != nil {
		return "", err
	}
	return runID, nil
}

func (t *Tracker) beginLocked(runID, runnable string, kind RunnableKind, targets []string, parameters map[string]any, cancel context.CancelFunc) error {
	switch t.state.State {
	case StateIdle:
	case StateRunning:
		return ErrAlreadyRunning
	default:
		return notCleared(t.state.State)
	}

	t.state = RunState{
		State:        StateRunning,
		Runnable:     runnable,
		RunnableKind: kind,
		RunID:        runID,
		Targets:      slices.Clone(targets),
		Parameters:   parameters,
		StartedAt:    time.Now(),
	}
	t.history = calibgraph.NewHistory()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.progress = nil
	return nil
}

// Complete moves a running tracker to finished.
func (t *Tracker) Complete(summary Summary) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.State != StateRunning {
		return ErrNotRunning
	}
	t.state.State = StateFinished
	t.state.EndedAt = time.Now()
	t.state.Result = &summary
	t.state.Progress = t.progressLocked()
	t.endLocked()
	return nil
}

// Fail moves a running tracker to error and records err.
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.State != StateRunning {
		return ErrNotRunning
	}
	if err == nil {
		err = fmt.Errorf("run %s failed without an error", t.state.RunID)
	}
	t.state.State = StateError
	t.state.EndedAt = time.Now()
	t.state.Error = newRunError(err)
	t.state.Progress = t.progressLocked()
	t.endLocked()
	return nil
}

func (t *Tracker) endLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

// Clear resets a tracker that is not running to idle, dropping the last
// run's state and history.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.State == StateRunning {
		return ErrCannotClearWhileRunning
	}
	t.state = RunState{}
	t.history = calibgraph.NewHistory()
	t.progress = nil
	return nil
}

// Stop asks the active run to stop. The traversal notices between vertices
// and pipelines notice between steps; a running step is not interrupted.
func (t *Tracker) Stop() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.state.State != StateRunning {
		return ErrNotRunning
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.logger.Info("run stop requested", slog.String("run_id", t.state.RunID))
	return nil
}

// Wait blocks until the active run ends or ctx is done. It returns nil
// immediately when nothing is running.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.RLock()
	done := t.done
	t.mu.RUnlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.state.clone()
	if s.State == StateRunning {
		s.Progress = t.progressLocked()
	}
	return s
}

// History returns the executions of the active or last run.
func (t *Tracker) History() []calibgraph.HistoryItem {
	t.mu.RLock()
	h := t.history
	t.mu.RUnlock()
	return h.Items()
}

func (t *Tracker) progressLocked() Progress {
	if t.progress == nil {
		return t.state.Progress
	}
	return t.progress.snapshot()
}

// Submit validates raw against the runnable's schema, then runs it against
// targets on a background goroutine. It returns the run id once the tracker
// is running.
//
// A node is run as a one-vertex graph. Validation and definition errors are
// returned before any state change. The run outlives ctx, keeping only its
// values; use Stop to cancel it.
func (t *Tracker) Submit(ctx context.Context, runnable calibgraph.Vertex, targets []string, raw map[string]any) (string, error) {
	if runnable == nil {
		return "", unknownRunnable("<nil>", nil)
	}

	t.submitMu.Lock()
	defer t.submitMu.Unlock()

	if err := t.checkIdle(); err != nil {
		return "", err
	}

	var parameters map[string]any
	if declarer, ok := runnable.(params.Declarer); ok {
		values, err := declarer.Schema().Validate(raw)
		if err != nil {
			return "", fmt.Errorf("parameters of %s: %w", runnable.Name(), err)
		}
		parameters = values.Raw()
	} else if len(raw) > 0 {
		parameters = raw
	}

	graph, kind, err := asGraph(runnable)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runID := uuid.New().String()
	targets = calibgraph.NormalizeTargets(targets)

	t.mu.Lock()
	if err := t.beginLocked(runID, runnable.Name(), kind, targets, parameters, cancel); err != nil {
		t.mu.Unlock()
		cancel()
		return "", err
	}
	progress := newProgressObserver(graph.Size())
	t.progress = progress
	history := t.history
	t.mu.Unlock()

	cctx := calibgraph.NewContext(runCtx,
		calibgraph.WithLogger(t.logger),
		calibgraph.WithContextRunID(runID))

	t.logger.Info("run submitted",
		slog.String("run_id", runID),
		slog.String("runnable", runnable.Name()),
		slog.String("kind", string(kind)),
		slog.Any("targets", targets))

	go t.execute(cctx, graph, targets, history, progress)
	return runID, nil
}

// SubmitByName resolves name in the tracker's library and submits it.
func (t *Tracker) SubmitByName(ctx context.Context, name string, targets []string, raw map[string]any) (string, error) {
	if t.library == nil {
		return "", ErrNoLibrary
	}
	runnable, err := t.library.Runnable(name)
	if err != nil {
		if Kind(err) == KindInvalidDefinition {
			return "", err
		}
		return "", unknownRunnable(name, err)
	}
	return t.Submit(ctx, runnable, targets, raw)
}

func (t *Tracker) checkIdle() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch t.state.State {
	case StateIdle:
		return nil
	case StateRunning:
		return ErrAlreadyRunning
	default:
		return notCleared(t.state.State)
	}
}

func (t *Tracker) execute(ctx calibgraph.Context, g *calibgraph.Graph, targets []string, h *calibgraph.History, progress *progressObserver) {
	result, err := t.orchestrator.Traverse(ctx, g, targets,
		calibgraph.WithHistory(h),
		calibgraph.WithObserver(progress))

	if err != nil {
		if ferr := t.Fail(err); ferr != nil {
			t.logger.Warn("run ended after tracker left running", slog.String("error", ferr.Error()))
		}
		return
	}

	summary := Summary{
		Successful: result.SuccessfulTargets(),
		Failed:     result.FailedTargets(),
		Executions: executions(result.History),
	}
	if cerr := t.Complete(summary); cerr != nil {
		t.logger.Warn("run ended after tracker left running", slog.String("error", cerr.Error()))
	}
}

// executions counts the history items of vertices that actually ran.
func executions(h *calibgraph.History) int {
	n := 0
	for _, item := range h.Items() {
		if item.Status != calibgraph.StatusSkipped {
			n++
		}
	}
	return n
}

// asGraph returns the graph to traverse for runnable.
func asGraph(runnable calibgraph.Vertex) (*calibgraph.Graph, RunnableKind, error) {
	switch v := runnable.(type) {
	case *calibgraph.Graph:
		if !v.Finalized() {
			return nil, KindGraph, fmt.Errorf("%w: %s", calibgraph.ErrNotFinalized, v.Name())
		}
		return v, KindGraph, nil
	case calibgraph.Node:
		g, err := calibgraph.Build(v.Name(), func(b *calibgraph.Builder) error {
			return b.AddVertex(v)
		})
		if err != nil {
			return nil, KindNode, err
		}
		return g, KindNode, nil
	default:
		return nil, "", fmt.Errorf("%w: %s is neither a node nor a graph", calibgraph.ErrInvalidVertex, runnable.Name())
	}
}
