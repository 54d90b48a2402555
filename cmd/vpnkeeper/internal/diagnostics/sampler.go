// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package diagnostics produces the randomized issue report behind the
diagnose command.

The sampler does not inspect the system. It draws one issue from a fixed
catalog and a confidence in [10, 90], then overwrites the report file with a
single line:

	42%,"DNS requests are leaking outside the tunnel"
*/
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/telemetry"
)

// Confidence bounds, inclusive.
const (
	MinConfidence = 10
	MaxConfidence = 90
)

var catalog = []string{
	"VPN daemon is not responding to client requests",
	"Firewall rules are blocking tunnel traffic",
	"DNS requests are leaking outside the tunnel",
	"Authentication token has expired",
	"MTU mismatch is fragmenting tunnel packets",
	"Network manager is overriding the VPN routes",
	"IPv6 traffic is bypassing the tunnel",
	"Selected VPN server is overloaded or unreachable",
}

// Catalog returns a copy of the candidate issues.
func Catalog() []string {
	return append([]string(nil), catalog...)
}

// Record is one sampled diagnosis.
type Record struct {
	// Confidence is a percentage in [MinConfidence, MaxConfidence].
	Confidence int
	Issue      string
}

// String renders the persisted form, e.g. 42%,"Authentication token has expired".
func (r Record) String() string {
	return fmt.Sprintf("%d%%,\"%s\"", r.Confidence, r.Issue)
}

// RandSource draws integers in [0, n). *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

// globalRand uses the math/rand/v2 top-level generator.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Store persists a record.
type Store interface {
	// Store overwrites any previous report and returns where it was written.
	Store(ctx context.Context, rec Record) (string, error)
}

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	// Rand defaults to the math/rand/v2 global generator.
	Rand RandSource

	Logger  *slog.Logger
	Metrics metrics.Recorder
	Tracer  trace.Tracer
}

// Sampler draws diagnoses and hands them to a Store.
type Sampler struct {
	store Store
	rand  RandSource
	opts  SamplerOptions
}

// NewSampler creates a Sampler writing to store.
func NewSampler(store Store, opts SamplerOptions) (*Sampler, error) {
	if store == nil {
		return nil, errors.New("diagnostics: nil store")
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoOp()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer()
	}
	return &Sampler{store: store, rand: opts.Rand, opts: opts}, nil
}

// Sample draws a record without persisting it. Issue and confidence are
// drawn independently.
func (s *Sampler) Sample() Record {
	issue := catalog[s.rand.IntN(len(catalog))]
	confidence := MinConfidence + s.rand.IntN(MaxConfidence-MinConfidence+1)
	return Record{Confidence: confidence, Issue: issue}
}

// Diagnose samples a record and persists it.
//
// # Outputs
//
//   - Record: the sampled record, returned even when storing fails
//   - string: the report location
//   - error: the storage error, if any
func (s *Sampler) Diagnose(ctx context.Context) (rec Record, location string, err error) {
	ctx, finish := telemetry.StartSpan(ctx, s.opts.Tracer, telemetry.SpanDiagnose)
	defer func() { finish(err) }()

	rec = s.Sample()
	telemetry.AddEvent(ctx, "diagnosis.sampled",
		attribute.String("issue", rec.Issue),
		attribute.Int("confidence", rec.Confidence),
	)

	location, err = s.store.Store(ctx, rec)
	if err != nil {
		s.opts.Logger.Error("Failed to write diagnosis report", "error", err)
		return rec, "", fmt.Errorf("store diagnosis: %w", err)
	}

	s.opts.Metrics.RecordDiagnosis(rec.Issue)
	s.opts.Logger.Debug("Diagnosis written", "location", location, "issue", rec.Issue)
	return rec, location, nil
}
