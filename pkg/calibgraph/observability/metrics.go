package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records traversal metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordVertexExecution records one vertex run with its per-target tally.
	RecordVertexExecution(ctx context.Context, vertex string, duration time.Duration, successful, failed int, err error)

	// RecordTraversal records a traversal completion.
	RecordTraversal(ctx context.Context, graph string, success bool, duration time.Duration)

	// RecordLoopRetry records targets sent back around a loop edge.
	RecordLoopRetry(ctx context.Context, vertex string, targets int)

	// RecordSnapshot records a snapshot save operation.
	RecordSnapshot(ctx context.Context, vertex string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	vertexExecutions metric.Int64Counter
	vertexLatency    metric.Float64Histogram
	vertexErrors     metric.Int64Counter
	targetOutcomes   metric.Int64Counter
	traversals       metric.Int64Counter
	traversalLatency metric.Float64Histogram
	loopRetries      metric.Int64Counter
	snapshotSize     metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the default OTel metrics instance.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("calibgraph")

	vertexExecutions, err := meter.Int64Counter("calibgraph.vertex.executions",
		metric.WithDescription("Number of vertex executions"),
	)
	if err != nil {
		return nil, err
	}

	vertexLatency, err := meter.Float64Histogram("calibgraph.vertex.latency_ms",
		metric.WithDescription("Vertex execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	vertexErrors, err := meter.Int64Counter("calibgraph.vertex.errors",
		metric.WithDescription("Number of vertex executions that returned an error"),
	)
	if err != nil {
		return nil, err
	}

	targetOutcomes, err := meter.Int64Counter("calibgraph.target.outcomes",
		metric.WithDescription("Per-target outcomes reported by vertices"),
	)
	if err != nil {
		return nil, err
	}

	traversals, err := meter.Int64Counter("calibgraph.traversal.runs",
		metric.WithDescription("Number of graph traversals"),
	)
	if err != nil {
		return nil, err
	}

	traversalLatency, err := meter.Float64Histogram("calibgraph.traversal.latency_ms",
		metric.WithDescription("Traversal latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	loopRetries, err := meter.Int64Counter("calibgraph.loop.retries",
		metric.WithDescription("Targets sent back to their vertex by a loop edge"),
	)
	if err != nil {
		return nil, err
	}

	snapshotSize, err := meter.Int64Histogram("calibgraph.snapshot.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		vertexExecutions: vertexExecutions,
		vertexLatency:    vertexLatency,
		vertexErrors:     vertexErrors,
		targetOutcomes:   targetOutcomes,
		traversals:       traversals,
		traversalLatency: traversalLatency,
		loopRetries:      loopRetries,
		snapshotSize:     snapshotSize,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordVertexExecution records a vertex execution.
func (m *otelMetrics) RecordVertexExecution(ctx context.Context, vertex string, duration time.Duration, successful, failed int, err error) {
	attrs := metric.WithAttributes(attribute.String("vertex", vertex))

	m.vertexExecutions.Add(ctx, 1, attrs)
	m.vertexLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.vertexErrors.Add(ctx, 1, attrs)
	}
	if successful > 0 {
		m.targetOutcomes.Add(ctx, int64(successful), metric.WithAttributes(
			attribute.String("vertex", vertex),
			attribute.String("outcome", "successful"),
		))
	}
	if failed > 0 {
		m.targetOutcomes.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("vertex", vertex),
			attribute.String("outcome", "failed"),
		))
	}
}

// RecordTraversal records a traversal.
func (m *otelMetrics) RecordTraversal(ctx context.Context, graph string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("graph", graph),
		attribute.Bool("success", success),
	)
	m.traversals.Add(ctx, 1, attrs)
	m.traversalLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordLoopRetry records a loop retry.
func (m *otelMetrics) RecordLoopRetry(ctx context.Context, vertex string, targets int) {
	m.loopRetries.Add(ctx, int64(targets), metric.WithAttributes(attribute.String("vertex", vertex)))
}

// RecordSnapshot records a snapshot save.
func (m *otelMetrics) RecordSnapshot(ctx context.Context, vertex string, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("vertex", vertex)))
}
