// Package observability provides structured logging, metrics, and tracing
// for calibration graph traversals.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds traversal context to a logger.
// Returns a new logger with run_id, vertex, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "rabi", 1)
//	enriched.Info("sweeping drive amplitude") // includes run_id, vertex, attempt
func EnrichLogger(logger *slog.Logger, runID, vertex string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("vertex", vertex),
		slog.Int("attempt", attempt),
	)
}

// LogTraversalStart logs the start of a graph traversal.
func LogTraversalStart(logger *slog.Logger, runID, graph string, targets []string) {
	if logger == nil {
		return
	}
	logger.Info("traversal starting",
		slog.String("run_id", runID),
		slog.String("graph", graph),
		slog.Any("targets", targets),
	)
}

// LogTraversalComplete logs traversal completion.
func LogTraversalComplete(logger *slog.Logger, runID string, durationMs float64, executed, failedTargets int) {
	if logger == nil {
		return
	}
	logger.Info("traversal completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("vertices_executed", executed),
		slog.Int("failed_targets", failedTargets),
	)
}

// LogTraversalError logs traversal failure.
func LogTraversalError(logger *slog.Logger, runID string, err error, durationMs float64, lastVertex string) {
	if logger == nil {
		return
	}
	logger.Error("traversal failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_vertex", lastVertex),
	)
}

// LogVertexStart logs vertex execution start.
func LogVertexStart(logger *slog.Logger, vertex string, targets []string) {
	if logger == nil {
		return
	}
	logger.Debug("vertex starting",
		slog.String("vertex", vertex),
		slog.Any("targets", targets),
	)
}

// LogVertexComplete logs vertex completion with its per-target tally.
func LogVertexComplete(logger *slog.Logger, vertex string, durationMs float64, successful, failed int) {
	if logger == nil {
		return
	}
	logger.Debug("vertex completed",
		slog.String("vertex", vertex),
		slog.Float64("duration_ms", durationMs),
		slog.Int("successful", successful),
		slog.Int("failed", failed),
	)
}

// LogVertexError logs vertex execution error.
func LogVertexError(logger *slog.Logger, vertex string, err error) {
	if logger == nil {
		return
	}
	logger.Error("vertex failed",
		slog.String("vertex", vertex),
		slog.String("error", err.Error()),
	)
}

// LogVertexSkipped logs a vertex that received no targets.
func LogVertexSkipped(logger *slog.Logger, vertex string) {
	if logger == nil {
		return
	}
	logger.Debug("vertex skipped",
		slog.String("vertex", vertex),
	)
}

// LogLoopRetry logs a loop edge sending targets back to their vertex.
func LogLoopRetry(logger *slog.Logger, vertex string, attempt int, targets []string) {
	if logger == nil {
		return
	}
	logger.Info("retrying vertex",
		slog.String("vertex", vertex),
		slog.Int("attempt", attempt),
		slog.Any("targets", targets),
	)
}

// LogLoopExhausted logs a loop that hit its iteration limit.
func LogLoopExhausted(logger *slog.Logger, vertex string, maxIterations int, targets []string) {
	if logger == nil {
		return
	}
	logger.Warn("loop iterations exhausted",
		slog.String("vertex", vertex),
		slog.Int("max_iterations", maxIterations),
		slog.Any("targets", targets),
	)
}

// LogConditionError logs an edge condition that failed to evaluate.
// The target is dropped from that edge.
func LogConditionError(logger *slog.Logger, source, destination, target string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("edge condition failed",
		slog.String("source", source),
		slog.String("destination", destination),
		slog.String("target", target),
		slog.String("error", err.Error()),
	)
}

// LogSnapshot logs snapshot creation.
func LogSnapshot(logger *slog.Logger, vertex string, index int64, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("vertex", vertex),
		slog.Int64("index", index),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs snapshot failure.
func LogSnapshotError(logger *slog.Logger, vertex string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("vertex", vertex),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
