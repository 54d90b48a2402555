// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel records events as OpenTelemetry instruments.
//
// The exporter is chosen by whoever built the Meter's provider (see the
// telemetry package): stdout, or the Prometheus bridge.
type OTel struct {
	updateChecks     metric.Int64Counter
	recoveryAttempts metric.Int64Counter
	recoveryRuns     metric.Int64Counter
	recoveryDuration metric.Float64Histogram
	remediations     metric.Int64Counter
	diagnoses        metric.Int64Counter
}

// NewOTel creates the instruments on meter.
func NewOTel(meter metric.Meter) (*OTel, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	m := &OTel{}
	var err error

	m.updateChecks, err = meter.Int64Counter("vpnkeeper.update.checks",
		metric.WithDescription("Self-update checks by outcome"))
	collect(err)

	m.recoveryAttempts, err = meter.Int64Counter("vpnkeeper.recovery.attempts",
		metric.WithDescription("Recovery loop iterations"))
	collect(err)

	m.recoveryRuns, err = meter.Int64Counter("vpnkeeper.recovery.runs",
		metric.WithDescription("Recovery runs by terminal outcome"))
	collect(err)

	m.recoveryDuration, err = meter.Float64Histogram("vpnkeeper.recovery.duration",
		metric.WithDescription("Wall time of recovery runs"),
		metric.WithUnit("s"))
	collect(err)

	m.remediations, err = meter.Int64Counter("vpnkeeper.remediation.actions",
		metric.WithDescription("Remediation action executions"))
	collect(err)

	m.diagnoses, err = meter.Int64Counter("vpnkeeper.diagnoses",
		metric.WithDescription("Persisted diagnoses by sampled issue"))
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// Events arrive without a context; the SDK only needs one for exemplars.
var bg = context.Background()

func (m *OTel) RecordUpdateCheck(outcome string) {
	m.updateChecks.Add(bg, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *OTel) RecordRecoveryAttempt() {
	m.recoveryAttempts.Add(bg, 1)
}

func (m *OTel) RecordRecoveryRun(outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.recoveryRuns.Add(bg, 1, attrs)
	m.recoveryDuration.Record(bg, d.Seconds(), attrs)
}

func (m *OTel) RecordRemediation(action string, ok bool) {
	m.remediations.Add(bg, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", resultLabel(ok)),
	))
}

func (m *OTel) RecordDiagnosis(issue string) {
	m.diagnoses.Add(bg, 1, metric.WithAttributes(attribute.String("issue", issue)))
}

var _ Recorder = (*OTel)(nil)
