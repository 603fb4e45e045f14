// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const qraTracerName = "cornerline.qra"

// SimulationTracer provides OpenTelemetry tracing for simulation runs.
//
// Thread Safety: Safe for concurrent use.
type SimulationTracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewSimulationTracer creates a new tracer.
//
// Inputs:
//   - logger: Logger for structured logging (can be nil for slog.Default).
//   - config: Observability configuration.
//
// Outputs:
//   - *SimulationTracer: Tracer instance.
func NewSimulationTracer(logger *slog.Logger, config ObservabilityConfig) *SimulationTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationTracer{
		tracer:  otel.Tracer(qraTracerName),
		logger:  logger,
		enabled: config.TracingEnabled,
	}
}

// StartRun starts a span covering an entire simulation run.
//
// Inputs:
//   - ctx: Parent context.
//   - req: The simulation request.
//   - seed: The effective seed for this run.
//
// Outputs:
//   - context.Context: Context with span.
//   - trace.Span: The created span (noop when tracing is disabled).
func (t *SimulationTracer) StartRun(ctx context.Context, req *SimulationRequest, seed int64) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}

	ctx, span := t.tracer.Start(ctx, "qra.run",
		trace.WithAttributes(
			attribute.Int("qra.iterations", req.Iterations),
			attribute.Int("qra.risks", len(req.Risks)),
			attribute.Float64("qra.target_percentile", req.TargetPercentile),
			attribute.Int64("qra.seed", seed),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	t.logger.InfoContext(ctx, "simulation run started",
		slog.Int("iterations", req.Iterations),
		slog.Int("risks", len(req.Risks)),
		slog.Int64("seed", seed),
	)

	return ctx, span
}

// EndRunOK completes a run span with the result summary.
//
// Inputs:
//   - span: The span to end. The caller ends it via defer; this only
//     annotates and sets status.
//   - result: The completed simulation result.
func (t *SimulationTracer) EndRunOK(span trace.Span, result *SimulationResult) {
	if span == nil {
		return
	}

	span.SetAttributes(
		attribute.String("qra.run_id", result.Metadata.RunID),
		attribute.Float64("qra.result.p50", result.P50),
		attribute.Float64("qra.result.target_value", result.TargetValue),
		attribute.Float64("qra.result.mean", result.Mean),
		attribute.String("qra.result.duration", result.Metadata.Duration.String()),
	)
	span.SetStatus(codes.Ok, "")
}

// EndRunError records a failed run on the span.
//
// Inputs:
//   - span: The span to annotate.
//   - err: The failure.
func (t *SimulationTracer) EndRunError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// LoggerWithTrace returns a logger carrying trace context.
//
// Inputs:
//   - ctx: Context that may contain trace information.
//   - logger: Base logger.
//
// Outputs:
//   - *slog.Logger: Logger with trace_id and span_id if available.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
