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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig_Disabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig()

	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
}

func TestDefaultConfig_OTLPFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()

	assert.Equal(t, ExporterOTLP, cfg.TraceExporter)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{TraceExporter: ExporterNone, MetricExporter: ExporterNone})
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.False(t, p.MetricsEnabled())
	assert.Nil(t, p.Gatherer())

	ctx, finish := StartSpan(context.Background(), p.Tracer(), SpanDiagnose)
	finish(nil)
	assert.Equal(t, "", TraceID(ctx))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{TraceExporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(context.Background(), Config{MetricExporter: "statsd"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_StdoutTrace(t *testing.T) {
	var buf bytes.Buffer
	p, err := Init(context.Background(), Config{
		TraceExporter:  ExporterStdout,
		MetricExporter: ExporterNone,
		Stdout:         &buf,
	})
	require.NoError(t, err)
	assert.True(t, p.TracingEnabled())

	ctx, finish := StartSpan(context.Background(), p.Tracer(), SpanUpdateCheck)
	assert.NotEmpty(t, TraceID(ctx))
	finish(nil)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), SpanUpdateCheck)
}

func TestInit_PrometheusBridge(t *testing.T) {
	p, err := Init(context.Background(), Config{
		TraceExporter:  ExporterNone,
		MetricExporter: ExporterPrometheus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.True(t, p.MetricsEnabled())
	require.NotNil(t, p.Gatherer())

	counter, err := p.Meter().Int64Counter("vpnkeeper.test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := p.Gatherer().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "vpnkeeper_test_events_total" {
			found = true
		}
	}
	assert.True(t, found, "bridged counter should be gathered")
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, finish := StartSpan(context.Background(), tp.Tracer("test"), SpanRecoveryRun)
	finish(errors.New("exhausted"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanRecoveryRun, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestStartSpan_NilTracer(t *testing.T) {
	_, finish := StartSpan(context.Background(), nil, SpanDiagnose)
	assert.NotPanics(t, func() { finish(nil) })
}
