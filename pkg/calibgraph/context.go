package calibgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
)

// Context provides execution context to nodes.
// It extends context.Context with calibgraph-specific services and metadata.
//
// Context is immutable after creation. The orchestrator derives a context
// for each vertex run with the vertex name, attempt, and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and vertex context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier of this traversal.
	// Auto-generated if not configured.
	RunID() string

	// Graph returns the path of the graph being traversed ("outer/inner").
	// Empty string outside a traversal.
	Graph() string

	// VertexName returns the vertex being executed.
	// Empty string outside a vertex run.
	VertexName() string

	// Attempt returns the loop pass number (1 = first run).
	Attempt() int
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	graph   string
	vertex  string
	attempt int
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) Graph() string        { return c.graph }
func (c *executionContext) VertexName() string   { return c.vertex }
func (c *executionContext) Attempt() int         { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, vertex, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier. If not set, a UUID is generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := calibgraph.NewContext(context.Background(),
//	    calibgraph.WithLogger(logger),
//	    calibgraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		attempt: 1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// asExecutionContext returns ctx as the internal implementation, wrapping
// foreign Context implementations.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context: ctx,
		logger:  logger,
		runID:   ctx.RunID(),
		graph:   ctx.Graph(),
		vertex:  ctx.VertexName(),
		attempt: ctx.Attempt(),
	}
}

// withParent replaces the underlying context.Context, keeping the metadata.
func (c *executionContext) withParent(parent context.Context) *executionContext {
	cp := *c
	cp.Context = parent
	return &cp
}

func (c *executionContext) withGraph(path string) *executionContext {
	cp := *c
	cp.graph = path
	return &cp
}

func (c *executionContext) withVertex(vertex string, attempt int) *executionContext {
	cp := *c
	cp.vertex = vertex
	cp.attempt = attempt
	cp.logger = observability.EnrichLogger(c.logger, c.runID, vertex, attempt).With(slog.String("graph", c.graph))
	return &cp
}
