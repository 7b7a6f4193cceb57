package calibgraph

import (
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/snapshot"
)

// orchestratorConfig holds configuration shared by every traversal of an
// Orchestrator.
type orchestratorConfig struct {
	skipFailed    bool
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
	store         snapshot.Store
	snapshotFatal bool
}

func defaultOrchestratorConfig() orchestratorConfig {
	return orchestratorConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*orchestratorConfig)

// WithSkipFailed sets the policy for vertices whose Run returns an error.
// Default: false, the traversal stops and returns a *VertexError. When true
// the attempted targets are treated as failed and the traversal continues.
func WithSkipFailed(skip bool) OrchestratorOption {
	return func(c *orchestratorConfig) {
		c.skipFailed = skip
	}
}

// WithMetrics enables metrics recording.
//
// Example:
//
//	o := calibgraph.NewOrchestrator(calibgraph.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) OrchestratorOption {
	return func(c *orchestratorConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for traversals and vertex runs.
func WithTracing(spans observability.SpanManager) OrchestratorOption {
	return func(c *orchestratorConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// WithSnapshotStore persists every vertex execution. The index returned by
// the store becomes the HistoryItem ID.
func WithSnapshotStore(store snapshot.Store) OrchestratorOption {
	return func(c *orchestratorConfig) {
		c.store = store
	}
}

// WithSnapshotFailureFatal makes a failed snapshot save stop the traversal
// with a *SnapshotError. Default: false, failures are logged and the item
// gets ID 0.
func WithSnapshotFailureFatal(fatal bool) OrchestratorOption {
	return func(c *orchestratorConfig) {
		c.snapshotFatal = fatal
	}
}

// Observer receives vertex lifecycle events during a traversal.
// Calls happen synchronously on the traversal goroutine.
type Observer interface {
	VertexStarted(ev VertexEvent)
	// VertexFinished is called for finished, error, and skipped vertices.
	VertexFinished(ev VertexEvent)
}

// VertexEvent describes a vertex lifecycle change.
type VertexEvent struct {
	RunID  string
	Graph  string
	Depth  int // 0 for vertices of the traversed graph, 1 for its subgraphs' vertices, ...
	Vertex string
	Status Status
	// Attempt is the 1-based loop pass.
	Attempt int
	Targets []string
	// Item is the recorded history item; nil for started events.
	Item *HistoryItem
}

// runConfig holds per-traversal configuration.
type runConfig struct {
	history  *History
	observer Observer
}

// RunOption configures a single traversal.
type RunOption func(*runConfig)

// WithHistory records into h instead of a fresh History, so that callers can
// read progress while the traversal runs.
func WithHistory(h *History) RunOption {
	return func(c *runConfig) {
		if h != nil {
			c.history = h
		}
	}
}

// WithObserver registers an observer for the traversal.
func WithObserver(o Observer) RunOption {
	return func(c *runConfig) {
		c.observer = o
	}
}
