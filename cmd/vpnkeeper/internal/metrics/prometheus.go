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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records events into client_golang collectors on its own registry.
//
// vpnkeeper is a short-lived CLI, so nothing is scraped. WriteTextfile dumps
// the registry for node_exporter's textfile collector instead.
type Prometheus struct {
	registry *prometheus.Registry

	updateChecks     *prometheus.CounterVec
	recoveryAttempts prometheus.Counter
	recoveryRuns     *prometheus.CounterVec
	recoveryDuration prometheus.Histogram
	remediations     *prometheus.CounterVec
	diagnoses        *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on a fresh registry.
func NewPrometheus() (*Prometheus, error) {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),

		updateChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemUpdate,
				Name:      "checks_total",
				Help:      "Self-update checks by outcome",
			},
			[]string{"outcome"},
		),

		recoveryAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemRecovery,
				Name:      "attempts_total",
				Help:      "Recovery loop iterations (remediation pass plus reconnect)",
			},
		),

		recoveryRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemRecovery,
				Name:      "runs_total",
				Help:      "Recovery runs by terminal outcome",
			},
			[]string{"outcome"},
		),

		recoveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemRecovery,
				Name:      "duration_seconds",
				Help:      "Wall time of recovery runs",
				Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 120},
			},
		),

		remediations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemRemediation,
				Name:      "actions_total",
				Help:      "Remediation action executions by action and result",
			},
			[]string{"action", "result"},
		),

		diagnoses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diagnoses_total",
				Help:      "Persisted diagnoses by sampled issue",
			},
			[]string{"issue"},
		),
	}

	collectors := []prometheus.Collector{
		m.updateChecks,
		m.recoveryAttempts,
		m.recoveryRuns,
		m.recoveryDuration,
		m.remediations,
		m.diagnoses,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Gatherer exposes the private registry for WriteTextfile.
func (m *Prometheus) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Prometheus) RecordUpdateCheck(outcome string) {
	m.updateChecks.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) RecordRecoveryAttempt() {
	m.recoveryAttempts.Inc()
}

func (m *Prometheus) RecordRecoveryRun(outcome string, d time.Duration) {
	m.recoveryRuns.WithLabelValues(outcome).Inc()
	m.recoveryDuration.Observe(d.Seconds())
}

func (m *Prometheus) RecordRemediation(action string, ok bool) {
	m.remediations.WithLabelValues(action, resultLabel(ok)).Inc()
}

func (m *Prometheus) RecordDiagnosis(issue string) {
	m.diagnoses.WithLabelValues(issue).Inc()
}

// WriteTextfile writes g in text exposition format to path.
//
// prometheus.WriteToTextfile writes to a temporary file and renames it, so
// node_exporter never reads a partial file.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

var _ Recorder = (*Prometheus)(nil)
