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
Package metrics records vpnkeeper's operational counters.

# Implementations

  - NoOp: counts in memory, exports nothing (default, and used by tests)
  - Prometheus: client_golang collectors on a private registry, written to a
    node-exporter textfile after each command
  - OTel: OpenTelemetry instruments from a metric.Meter; the telemetry
    package exports them to stdout or bridges them into a Prometheus registry
  - Multi: fans out to several recorders

# Metrics Exported

  - vpnkeeper_update_checks_total{outcome}
  - vpnkeeper_recovery_attempts_total
  - vpnkeeper_recovery_runs_total{outcome}
  - vpnkeeper_recovery_duration_seconds
  - vpnkeeper_remediation_actions_total{action,result}
  - vpnkeeper_diagnoses_total{issue}
*/
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	namespace = "vpnkeeper"

	subsystemUpdate      = "update"
	subsystemRecovery    = "recovery"
	subsystemRemediation = "remediation"
)

// Result labels for remediation actions.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Recorder receives one call per observable event.
//
// Labels are plain strings so the packages that emit them do not depend on
// each other's enums.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordUpdateCheck counts a CheckAndUpdate/PerformUpdate result.
	RecordUpdateCheck(outcome string)

	// RecordRecoveryAttempt counts one iteration of the recovery loop.
	RecordRecoveryAttempt()

	// RecordRecoveryRun counts a finished recovery run and its wall time.
	RecordRecoveryRun(outcome string, duration time.Duration)

	// RecordRemediation counts one remediation action execution.
	RecordRemediation(action string, ok bool)

	// RecordDiagnosis counts a persisted diagnosis.
	RecordDiagnosis(issue string)
}

// =============================================================================
// NoOp
// =============================================================================

// NoOp keeps counts in memory and exports nothing.
type NoOp struct {
	updateChecks     atomic.Int64
	recoveryAttempts atomic.Int64
	recoveryRuns     atomic.Int64
	remediations     atomic.Int64
	remediationFails atomic.Int64
	diagnoses        atomic.Int64

	mu       sync.Mutex
	outcomes map[string]int
}

// NewNoOp creates a NoOp recorder.
func NewNoOp() *NoOp {
	return &NoOp{outcomes: make(map[string]int)}
}

func (m *NoOp) RecordUpdateCheck(outcome string) {
	m.updateChecks.Add(1)
	m.bump("update:" + outcome)
}

func (m *NoOp) RecordRecoveryAttempt() {
	m.recoveryAttempts.Add(1)
}

func (m *NoOp) RecordRecoveryRun(outcome string, _ time.Duration) {
	m.recoveryRuns.Add(1)
	m.bump("recovery:" + outcome)
}

func (m *NoOp) RecordRemediation(_ string, ok bool) {
	m.remediations.Add(1)
	if !ok {
		m.remediationFails.Add(1)
	}
}

func (m *NoOp) RecordDiagnosis(_ string) {
	m.diagnoses.Add(1)
}

func (m *NoOp) bump(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[key]++
}

// UpdateChecks returns the number of recorded update checks.
func (m *NoOp) UpdateChecks() int64 { return m.updateChecks.Load() }

// RecoveryAttempts returns the number of recorded recovery iterations.
func (m *NoOp) RecoveryAttempts() int64 { return m.recoveryAttempts.Load() }

// RecoveryRuns returns the number of recorded recovery runs.
func (m *NoOp) RecoveryRuns() int64 { return m.recoveryRuns.Load() }

// Remediations returns total and failed remediation counts.
func (m *NoOp) Remediations() (total, failed int64) {
	return m.remediations.Load(), m.remediationFails.Load()
}

// Diagnoses returns the number of recorded diagnoses.
func (m *NoOp) Diagnoses() int64 { return m.diagnoses.Load() }

// Outcome returns how often "update:<outcome>" or "recovery:<outcome>" was recorded.
func (m *NoOp) Outcome(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}

// =============================================================================
// Multi
// =============================================================================

// Multi forwards every event to each recorder in order.
type Multi []Recorder

func (m Multi) RecordUpdateCheck(outcome string) {
	for _, r := range m {
		r.RecordUpdateCheck(outcome)
	}
}

func (m Multi) RecordRecoveryAttempt() {
	for _, r := range m {
		r.RecordRecoveryAttempt()
	}
}

func (m Multi) RecordRecoveryRun(outcome string, d time.Duration) {
	for _, r := range m {
		r.RecordRecoveryRun(outcome, d)
	}
}

func (m Multi) RecordRemediation(action string, ok bool) {
	for _, r := range m {
		r.RecordRemediation(action, ok)
	}
}

func (m Multi) RecordDiagnosis(issue string) {
	for _, r := range m {
		r.RecordDiagnosis(issue)
	}
}

func resultLabel(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}

var (
	_ Recorder = (*NoOp)(nil)
	_ Recorder = Multi(nil)
)
