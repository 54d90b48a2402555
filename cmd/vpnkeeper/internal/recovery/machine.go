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
Package recovery drives the remediation set and a reconnect attempt in a
bounded retry loop.

# State Machine

	Idle ──Run──▶ Attempting ──connect ok──────────────▶ Succeeded
	                 ▲    │
	                 │    └─connect failed, deadline passed─▶ Exhausted
	                 └──── sleep(Delay) while before deadline

The deadline is checked between iterations only. An iteration that is running
when the deadline arrives finishes, and no sleep follows the final failed
attempt. A zero duration therefore runs exactly one iteration.

The package also provides Troubleshoot, the interactive single-pass variant.
*/
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/remediation"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/telemetry"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/vpn"
)

const (
	// DefaultDuration is the wall-clock budget of one bounded recovery.
	DefaultDuration = 30 * time.Second

	// DefaultDelay is the pause after a failed attempt.
	DefaultDelay = 5 * time.Second
)

// State is the machine's position within one session.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Outcome is the terminal result of Run.
type Outcome int

const (
	OutcomeExhausted Outcome = iota
	OutcomeSucceeded
)

func (o Outcome) String() string {
	if o == OutcomeSucceeded {
		return "succeeded"
	}
	return "exhausted"
}

// Connector makes one reconnect attempt. A nil error is success.
type Connector interface {
	Connect(ctx context.Context) error
}

// StatusCollector gathers the status shown after a successful reconnect.
type StatusCollector interface {
	Collect(ctx context.Context) vpn.Report
}

// Session is the ephemeral state of one Run.
type Session struct {
	ID       uuid.UUID
	Start    time.Time
	Deadline time.Time
	State    State

	// Attempts counts started iterations.
	Attempts int

	Succeeded bool

	// LastErr is the error of the most recent failed reconnect.
	LastErr error

	// Report is the status collected on success.
	Report *vpn.Report
}

// Options configures a Machine.
type Options struct {
	// Delay is the pause after a failed attempt. Default: DefaultDelay.
	Delay time.Duration

	// Clock defaults to RealClock.
	Clock Clock

	// OnRetry is called after a failed attempt when another one will follow.
	OnRetry func(attempt int, err error, remaining time.Duration)

	Logger  *slog.Logger
	Metrics metrics.Recorder
	Tracer  trace.Tracer
}

// Machine runs bounded recovery sessions.
//
// # Thread Safety
//
// Sessions are not meant to overlap; a Machine holds no per-session state but
// the remediation set and collaborators are not guarded against concurrent use.
type Machine struct {
	actions   *remediation.Set
	connector Connector
	status    StatusCollector
	opts      Options
}

// NewMachine creates a Machine over the given remediation set.
func NewMachine(actions *remediation.Set, connector Connector, status StatusCollector, opts Options) (*Machine, error) {
	if actions == nil {
		return nil, errors.New("recovery: nil remediation set")
	}
	if connector == nil {
		return nil, errors.New("recovery: nil connector")
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	} else if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
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
	return &Machine{actions: actions, connector: connector, status: status, opts: opts}, nil
}

// Run applies the remediation set and reconnects until success or until the
// deadline (now + duration) has passed.
//
// # Outputs
//
//   - Outcome: OutcomeSucceeded as soon as a reconnect succeeds,
//     OutcomeExhausted when the deadline passed or ctx was cancelled while
//     waiting between attempts
//   - *Session: the finished session, never nil
func (m *Machine) Run(ctx context.Context, duration time.Duration) (outcome Outcome, sess *Session) {
	if duration < 0 {
		duration = 0
	}

	start := m.opts.Clock.Now()
	sess = &Session{
		ID:       uuid.New(),
		Start:    start,
		Deadline: start.Add(duration),
		State:    StateIdle,
	}
	logger := m.opts.Logger.With("session_id", sess.ID.String())

	ctx, finish := telemetry.StartSpan(ctx, m.opts.Tracer, telemetry.SpanRecoveryRun,
		attribute.String("session_id", sess.ID.String()),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	)
	defer func() {
		telemetry.AddEvent(ctx, "recovery.finished",
			attribute.String("outcome", outcome.String()),
			attribute.Int("attempts", sess.Attempts),
		)
		m.opts.Metrics.RecordRecoveryRun(outcome.String(), m.opts.Clock.Now().Sub(start))
		finish(nil)
	}()

	logger.Info("Starting bounded recovery",
		"duration", duration, "delay", m.opts.Delay, "actions", m.actions.Len())

	for {
		sess.Attempts++
		sess.State = StateAttempting

		err := m.attempt(ctx, sess.Attempts)
		if err == nil {
			sess.Succeeded = true
			sess.State = StateSucceeded
			if m.status != nil {
				report := m.status.Collect(ctx)
				sess.Report = &report
			}
			logger.Info("Recovery succeeded", "attempts", sess.Attempts)
			return OutcomeSucceeded, sess
		}
		sess.LastErr = err

		remaining := sess.Deadline.Sub(m.opts.Clock.Now())
		if remaining <= 0 {
			break
		}

		logger.Warn("Reconnect failed, retrying",
			"attempt", sess.Attempts, "error", err, "remaining", remaining)
		if m.opts.OnRetry != nil {
			m.opts.OnRetry(sess.Attempts, err, remaining)
		}

		if err := m.opts.Clock.Sleep(ctx, m.opts.Delay); err != nil {
			logger.Warn("Recovery interrupted", "error", err)
			break
		}
		if !m.opts.Clock.Now().Before(sess.Deadline) {
			break
		}
	}

	sess.State = StateExhausted
	logger.Warn("Recovery exhausted", "attempts", sess.Attempts, "last_error", sess.LastErr)
	return OutcomeExhausted, sess
}

// attempt runs one remediation pass and one reconnect.
func (m *Machine) attempt(ctx context.Context, n int) (err error) {
	ctx, finish := telemetry.StartSpan(ctx, m.opts.Tracer, telemetry.SpanRecoveryTry,
		attribute.Int("attempt", n))
	defer func() { finish(err) }()

	m.opts.Metrics.RecordRecoveryAttempt()

	report := m.actions.Run(ctx)
	if failed := report.Failed(); len(failed) > 0 {
		telemetry.AddEvent(ctx, "remediation.partial",
			attribute.Int("failed_actions", len(failed)))
	}

	return m.connector.Connect(ctx)
}
