package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"modelcore/internal/core"
)

// Accepted values of --metrics and --trace.
const (
	metricsExpvar     = "expvar"
	metricsPrometheus = "prometheus"
	traceJSON         = "json"
	traceOTel         = "otel"
)

// telemetry carries the recorders chosen on the command line and writes what
// they collected once the command is done.
type telemetry struct {
	options []core.ServiceOption
	flushes []func(context.Context) error
}

func (o *rootOptions) telemetry(w io.Writer) (*telemetry, error) {
	t := &telemetry{}
	switch o.metrics {
	case "":
	case metricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		t.options = append(t.options, core.WithMetricsRecorder(rec))
		t.flushes = append(t.flushes, func(context.Context) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{rec.Name(): rec.Snapshot()})
		})
	case metricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, err
		}
		t.options = append(t.options, core.WithMetricsRecorder(rec))
		t.flushes = append(t.flushes, func(context.Context) error {
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return nil, fmt.Errorf("unknown --metrics %q (want %s or %s)", o.metrics, metricsExpvar, metricsPrometheus)
	}

	switch o.trace {
	case "":
	case traceJSON:
		t.options = append(t.options, core.WithTracer(core.NewJSONTracer(w)))
	case traceOTel:
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanLogger{
			logger: slog.New(slog.NewJSONHandler(w, nil)),
		}))
		t.options = append(t.options, core.WithTracer(core.NewOTelTracer(tp.Tracer("modelctl"))))
		t.flushes = append(t.flushes, tp.Shutdown)
	default:
		return nil, fmt.Errorf("unknown --trace %q (want %s or %s)", o.trace, traceJSON, traceOTel)
	}
	return t, nil
}

func (t *telemetry) flush(ctx context.Context) error {
	for _, fn := range t.flushes {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

// spanLogger writes every finished span as one structured log line.
type spanLogger struct {
	logger *slog.Logger
}

func (spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (s spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	s.logger.Info("span",
		"name", span.Name(),
		"trace_id", span.SpanContext().TraceID().String(),
		"status", span.Status().Code.String(),
		"duration", span.EndTime().Sub(span.StartTime()),
	)
}

func (spanLogger) Shutdown(context.Context) error { return nil }

func (spanLogger) ForceFlush(context.Context) error { return nil }
