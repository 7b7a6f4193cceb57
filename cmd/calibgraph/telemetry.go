package main

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/randalmurphal/calibgraph/pkg/calibgraph"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/config"
	"github.com/randalmurphal/calibgraph/pkg/calibgraph/observability"
)

// telemetry owns the OTel providers installed for the process. Spans and a
// metric summary are written to the log; there is no remote exporter.
type telemetry struct {
	logger *slog.Logger

	reader *sdkmetric.ManualReader
	meters *sdkmetric.MeterProvider
	traces *sdktrace.TracerProvider
}

func newTelemetry(s config.Settings, logger *slog.Logger) *telemetry {
	t := &telemetry{logger: logger}
	if s.Metrics {
		t.reader = sdkmetric.NewManualReader()
		t.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(t.reader))
		otel.SetMeterProvider(t.meters)
	}
	if s.Tracing {
		t.traces = sdktrace.NewTracerProvider(sdktrace.WithSyncer(&logExporter{logger: logger}))
		otel.SetTracerProvider(t.traces)
	}
	return t
}

func (t *telemetry) orchestratorOptions() []calibgraph.OrchestratorOption {
	var opts []calibgraph.OrchestratorOption
	if t.meters != nil {
		opts = append(opts, calibgraph.WithMetrics(observability.NewMetricsRecorder()))
	}
	if t.traces != nil {
		opts = append(opts, calibgraph.WithTracing(observability.NewSpanManager()))
	}
	return opts
}

// report logs the current value of every collected metric.
func (t *telemetry) report(ctx context.Context) {
	if t.reader == nil {
		return
	}
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		t.logger.Warn("metrics collection failed", slog.String("error", err.Error()))
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				t.logger.Info("metric", slog.String("name", m.Name), slog.Int64("total", total))
			case metricdata.Histogram[float64]:
				var (
					count uint64
					sum   float64
				)
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				t.logger.Info("metric", slog.String("name", m.Name),
					slog.Uint64("count", count), slog.Float64("sum", sum))
			case metricdata.Histogram[int64]:
				var count uint64
				for _, dp := range data.DataPoints {
					count += dp.Count
				}
				t.logger.Info("metric", slog.String("name", m.Name), slog.Uint64("count", count))
			}
		}
	}
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if t.meters != nil {
		errs = append(errs, t.meters.Shutdown(ctx))
	}
	if t.traces != nil {
		errs = append(errs, t.traces.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// logExporter writes finished spans to the logger.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Debug("span",
			slog.String("name", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
			slog.String("status", s.Status().Code.String()))
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }
