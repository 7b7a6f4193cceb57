package runstate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/params"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/registry"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/runstate"
)

func succeed(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	return calibgraph.AllSuccessful(targets), nil
}

// gate is a node that blocks until released.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) run(ctx calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return calibgraph.AllSuccessful(targets), nil
}

func waitDone(t *testing.T, tr *runstate.Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Wait(ctx))
}

func chain(t *testing.T, name string, nodes ...calibgraph.Node) *calibgraph.Graph {
	t.Helper()
	g, err := calibgraph.Build(name, func(b *calibgraph.Builder) error {
		for i, n := range nodes {
			if err := b.AddVertex(n); err != nil {
				return err
			}
			if i > 0 {
				if err := b.Connect(nodes[i-1].Name(), n.Name()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	return g
}

func TestTracker_ManualTransitions(t *testing.T) {
	tr := runstate.NewTracker()
	assert.Equal(t, runstate.StateIdle, tr.Snapshot().State)

	assert.ErrorIs(t, tr.Complete(runstate.Summary{}), runstate.ErrNotRunning)
	assert.ErrorIs(t, tr.Fail(errors.New("x")), runstate.ErrNotRunning)
	assert.ErrorIs(t, tr.Stop(), runstate.ErrNotRunning)
	require.NoError(t, tr.Clear())

	runID, err := tr.Begin("tuneup", runstate.KindGraph, []string{"q1"})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	_, err = tr.Begin("tuneup", runstate.KindGraph, []string{"q1"})
	assert.ErrorIs(t, err, runstate.ErrAlreadyRunning)
	assert.ErrorIs(t, tr.Clear(), runstate.ErrCannotClearWhileRunning)

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateRunning, s.State)
	assert.Equal(t, runID, s.RunID)
	assert.False(t, s.StartedAt.IsZero())
	assert.True(t, s.EndedAt.IsZero())

	require.NoError(t, tr.Complete(runstate.Summary{Successful: []string{"q1"}}))
	s = tr.Snapshot()
	assert.Equal(t, runstate.StateFinished, s.State)
	require.NotNil(t, s.Result)
	assert.Equal(t, []string{"q1"}, s.Result.Successful)
	assert.False(t, s.EndedAt.IsZero())

	_, err = tr.Begin("tuneup", runstate.KindGraph, nil)
	assert.ErrorIs(t, err, runstate.ErrAlreadyRunning)
	assert.ErrorIs(t, err, runstate.ErrNotCleared)
	assert.Equal(t, runstate.KindConflict, runstate.Kind(err))

	require.NoError(t, tr.Clear())
	assert.Equal(t, runstate.RunState{}, tr.Snapshot())
}

func TestTracker_FailRecordsStructuredError(t *testing.T) {
	tr := runstate.NewTracker()
	_, err := tr.Begin("rabi", runstate.KindNode, []string{"q1"})
	require.NoError(t, err)

	cause := &calibgraph.VertexError{Vertex: "rabi", Graph: "rabi", Err: errors.New("awg offline")}
	require.NoError(t, tr.Fail(cause))

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateError, s.State)
	require.NotNil(t, s.Error)
	assert.Equal(t, "*calibgraph.VertexError", s.Error.Class)
	assert.Equal(t, runstate.KindExecution, s.Error.Kind)
	assert.Equal(t, "rabi", s.Error.Vertex)
	assert.Contains(t, s.Error.Message, "awg offline")
	assert.Contains(t, s.Error.Traceback, "*errors.errorString: awg offline")
}

func TestTracker_SubmitRunsGraph(t *testing.T) {
	tr := runstate.NewTracker()
	g := chain(t, "tuneup",
		calibgraph.NewNode("spectroscopy", succeed),
		calibgraph.NewNode("rabi", succeed),
	)

	runID, err := tr.Submit(context.Background(), g, []string{"q2", "q1"}, nil)
	require.NoError(t, err)
	waitDone(t, tr)

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateFinished, s.State)
	assert.Equal(t, runID, s.RunID)
	assert.Equal(t, "tuneup", s.Runnable)
	assert.Equal(t, runstate.KindGraph, s.RunnableKind)
	assert.Equal(t, []string{"q1", "q2"}, s.Targets)
	require.NotNil(t, s.Result)
	assert.Equal(t, []string{"q1", "q2"}, s.Result.Successful)
	assert.Equal(t, 2, s.Result.Executions)
	assert.Equal(t, runstate.Progress{CurrentVertex: "rabi", Completed: 2, Total: 2, Percent: 100}, s.Progress)

	history := tr.History()
	require.Len(t, history, 2)
	assert.Equal(t, "spectroscopy", history[0].Vertex)
}

func TestTracker_SingleFlight(t *testing.T) {
	tr := runstate.NewTracker()
	blocker := newGate()
	g := chain(t, "slow",
		calibgraph.NewNode("wait", blocker.run),
		calibgraph.NewNode("after", succeed),
	)

	_, err := tr.Submit(context.Background(), g, []string{"q1"}, nil)
	require.NoError(t, err)
	<-blocker.started

	for range 3 {
		_, err := tr.Submit(context.Background(), g, []string{"q1"}, nil)
		assert.ErrorIs(t, err, runstate.ErrAlreadyRunning)
		assert.Equal(t, runstate.KindConflict, runstate.Kind(err))
		assert.Equal(t, runstate.ErrCodeAlreadyRunning, runstate.Code(err))
	}

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateRunning, s.State)
	assert.Equal(t, "wait", s.Progress.CurrentVertex)
	assert.Equal(t, 0, s.Progress.Completed)
	assert.Equal(t, 2, s.Progress.Total)

	close(blocker.release)
	waitDone(t, tr)
	assert.Equal(t, runstate.StateFinished, tr.Snapshot().State)

	_, err = tr.Submit(context.Background(), g, []string{"q1"}, nil)
	assert.ErrorIs(t, err, runstate.ErrAlreadyRunning)
	assert.ErrorIs(t, err, runstate.ErrNotCleared)
	assert.Equal(t, runstate.ErrCodeAlreadyRunning, runstate.Code(err))
	assert.Contains(t, err.Error(), "finished run")
}

func TestTracker_Stop(t *testing.T) {
	tr := runstate.NewTracker()
	blocker := newGate()
	var afterRan bool
	g := chain(t, "stoppable",
		calibgraph.NewNode("wait", blocker.run),
		calibgraph.NewNode("after", func(_ calibgraph.Context, targets []string) (calibgraph.RunSummary, error) {
			afterRan = true
			return calibgraph.AllSuccessful(targets), nil
		}),
	)

	_, err := tr.Submit(context.Background(), g, []string{"q1"}, nil)
	require.NoError(t, err)
	<-blocker.started

	require.NoError(t, tr.Stop())
	waitDone(t, tr)

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateError, s.State)
	require.NotNil(t, s.Error)
	assert.Equal(t, "*calibgraph.CancellationError", s.Error.Class)
	assert.False(t, afterRan)
}

func TestTracker_SubmitNodeAndErrorRun(t *testing.T) {
	tr := runstate.NewTracker()
	broken := calibgraph.NewNode("broken", func(calibgraph.Context, []string) (calibgraph.RunSummary, error) {
		return calibgraph.RunSummary{}, errors.New("flux bias out of range")
	})

	_, err := tr.Submit(context.Background(), broken, []string{"q1"}, nil)
	require.NoError(t, err)
	waitDone(t, tr)

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateError, s.State)
	assert.Equal(t, runstate.KindNode, s.RunnableKind)
	assert.Equal(t, runstate.KindExecution, s.Error.Kind)
	assert.Equal(t, "broken", s.Error.Vertex)

	history := tr.History()
	require.Len(t, history, 1)
	assert.Error(t, history[0].Err)
}

// schemaNode is a node with a parameter schema.
type schemaNode struct {
	calibgraph.Node
}

func (schemaNode) Schema() params.Schema {
	return params.Schema{Fields: []params.Field{
		{Name: "points", Type: params.TypeInt, Required: true},
		{Name: "span_mhz", Type: params.TypeFloat, Default: 20.0},
	}}
}

func TestTracker_ValidatesParameters(t *testing.T) {
	tr := runstate.NewTracker()
	n := schemaNode{calibgraph.NewNode("spectroscopy", succeed)}

	_, err := tr.Submit(context.Background(), n, []string{"q1"}, map[string]any{"bogus": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, params.ErrValidation)
	assert.Equal(t, runstate.KindValidation, runstate.Kind(err))
	assert.Equal(t, runstate.StateIdle, tr.Snapshot().State)

	_, err = tr.Submit(context.Background(), n, []string{"q1"}, map[string]any{"points": 51})
	require.NoError(t, err)
	waitDone(t, tr)

	s := tr.Snapshot()
	assert.Equal(t, runstate.StateFinished, s.State)
	assert.EqualValues(t, 51, s.Parameters["points"])
	assert.EqualValues(t, 20.0, s.Parameters["span_mhz"])
}

func TestTracker_SubmitByName(t *testing.T) {
	assert.ErrorIs(t, submitByName(runstate.NewTracker(), "x"), runstate.ErrNoLibrary)

	lib := registry.NewLibrary()
	require.NoError(t, lib.AddNode(calibgraph.NewNode("rabi", succeed)))
	require.NoError(t, lib.AddGraph("broken", func() (*calibgraph.Graph, error) {
		return calibgraph.NewBuilder("broken").Finalize()
	}))
	tr := runstate.NewTracker(runstate.WithLibrary(lib))

	err := submitByName(tr, "missing")
	assert.Equal(t, runstate.ErrCodeUnknownRunnable, runstate.Code(err))
	assert.Equal(t, runstate.KindInvalidDefinition, runstate.Kind(err))

	err = submitByName(tr, "broken")
	assert.ErrorIs(t, err, calibgraph.ErrEmptyGraph)
	assert.Equal(t, runstate.KindInvalidDefinition, runstate.Kind(err))

	require.NoError(t, submitByName(tr, "rabi"))
	waitDone(t, tr)
	assert.Equal(t, runstate.StateFinished, tr.Snapshot().State)
}

func submitByName(tr *runstate.Tracker, name string) error {
	_, err := tr.SubmitByName(context.Background(), name, []string{"q1"}, nil)
	return err
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	tr := runstate.NewTracker()
	_, err := tr.Begin("rabi", runstate.KindNode, []string{"q1"})
	require.NoError(t, err)
	require.NoError(t, tr.Complete(runstate.Summary{Successful: []string{"q1"}}))

	s := tr.Snapshot()
	s.Targets[0] = "mutated"
	s.Result.Successful[0] = "mutated"

	again := tr.Snapshot()
	assert.Equal(t, []string{"q1"}, again.Targets)
	assert.Equal(t, []string{"q1"}, again.Result.Successful)
}

func TestTracker_WaitHonoursContext(t *testing.T) {
	tr := runstate.NewTracker()
	require.NoError(t, tr.Wait(context.Background()))

	_, err := tr.Begin("manual", runstate.KindGraph, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Wait(ctx), context.DeadlineExceeded)
}
