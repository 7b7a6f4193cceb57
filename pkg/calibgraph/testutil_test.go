package calibgraph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// call records one Run invocation.
type call struct {
	Vertex  string
	Targets []string
}

// callLog records node invocations across a traversal.
type callLog struct {
	mu    sync.Mutex
	calls []call
}

func (l *callLog) node(name string, behave RunFunc) Node {
	return NewNode(name, func(ctx Context, targets []string) (RunSummary, error) {
		l.mu.Lock()
		l.calls = append(l.calls, call{Vertex: name, Targets: slices.Clone(targets)})
		l.mu.Unlock()
		return behave(ctx, targets)
	})
}

func (l *callLog) order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.calls))
	for i, c := range l.calls {
		names[i] = c.Vertex
	}
	return names
}

func (l *callLog) callsTo(name string) []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []call
	for _, c := range l.calls {
		if c.Vertex == name {
			out = append(out, c)
		}
	}
	return out
}

// Behaviours.

func succeed(_ Context, targets []string) (RunSummary, error) {
	return AllSuccessful(targets), nil
}

func failAll(_ Context, targets []string) (RunSummary, error) {
	return AllFailed(targets), nil
}

// failOnly fails the listed targets and succeeds the rest.
func failOnly(failed ...string) RunFunc {
	return func(_ Context, targets []string) (RunSummary, error) {
		var s RunSummary
		for _, t := range targets {
			if slices.Contains(failed, t) {
				s.Failed = append(s.Failed, t)
			} else {
				s.Successful = append(s.Successful, t)
			}
		}
		return s, nil
	}
}

func errorWith(err error) RunFunc {
	return func(Context, []string) (RunSummary, error) {
		return RunSummary{}, err
	}
}

var errInstrument = errors.New("instrument offline")

// mustBuild builds a graph and fails the test on error.
func mustBuild(t *testing.T, name string, fn func(b *Builder) error, opts ...VertexOption) *Graph {
	t.Helper()
	g, err := Build(name, fn, opts...)
	require.NoError(t, err)
	return g
}

// addAll adds vertices and returns the first error.
func addAll(b *Builder, vertices ...Vertex) error {
	for _, v := range vertices {
		if err := b.AddVertex(v); err != nil {
			return err
		}
	}
	return nil
}

// historyNames returns the vertex names of the history in order.
func historyNames(h *History) []string {
	items := h.Items()
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Vertex
	}
	return names
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// logCtx creates a test context whose logs land in buf as JSON lines.
func logCtx(buf *bytes.Buffer) Context {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewContext(context.Background(), WithLogger(logger))
}
