// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Span names used across vpnkeeper.
const (
	SpanUpdateCheck   = "selfupdate.check"
	SpanUpdatePerform = "selfupdate.perform"
	SpanRecoveryRun   = "recovery.run"
	SpanRecoveryTry   = "recovery.attempt"
	SpanDiagnose      = "diagnostics.diagnose"
)

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return tracenoop.NewTracerProvider().Tracer("vpnkeeper")
}

// StartSpan starts an internal span and returns a finish function.
//
// # Description
//
// The finish function records err (if any) as the span status and ends the
// span. A nil tracer is treated as a no-op tracer.
//
// # Example
//
//	ctx, finish := telemetry.StartSpan(ctx, tracer, telemetry.SpanUpdateCheck,
//	    attribute.String("local_version", local))
//	defer func() { finish(err) }()
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if tracer == nil {
		tracer = NoopTracer()
	}

	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
	return ctx, finish
}

// AddEvent attaches an event to the span in ctx, if any.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// TraceID returns the hex trace ID in ctx, or "" when there is no valid span.
func TraceID(ctx context.Context) string {
	id := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !id.IsValid() {
		return ""
	}
	return id.String()
}
