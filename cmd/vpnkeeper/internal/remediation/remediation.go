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
Package remediation holds the ordered repair actions applied to a broken
VPN connection.

Actions are independent and idempotent. A Set runs every action in order and
never stops on failure: each failure is logged as a warning and reported,
then the next action runs.

# Standard Order

 1. restart-network       systemctl restart NetworkManager
 2. flush-iptables        iptables -F
 3. flush-nftables        nft flush ruleset
 4. restart-vpn-service   systemctl unmask + restart nordvpnd
 5. reauthenticate        nordvpn logout, then nordvpn login
 6. show-service-log      journalctl -u nordvpnd -n N --no-pager
 7. probe-connectivity    ping -c 3 1.1.1.1

Steps 6 and 7 are dropped when their option is zero/empty, which yields the
shorter list the interactive troubleshooter historically used.
*/
package remediation

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
)

// Action names.
const (
	ActionDisconnect        = "disconnect"
	ActionRestartNetwork    = "restart-network"
	ActionFlushIPTables     = "flush-iptables"
	ActionFlushNFTables     = "flush-nftables"
	ActionRestartVPNService = "restart-vpn-service"
	ActionReauthenticate    = "reauthenticate"
	ActionShowServiceLog    = "show-service-log"
	ActionProbe             = "probe-connectivity"
)

// Action is one named repair step.
type Action struct {
	// Name identifies the action in logs, metrics and output.
	Name string

	// Description is a short human-readable label.
	Description string

	// Run performs the action.
	Run func(ctx context.Context) error
}

// Result is the outcome of one action.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// OK reports whether the action succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report lists the results of one pass, in execution order.
type Report struct {
	Results []Result
}

// Failed returns the results whose action returned an error.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Names returns the executed action names in order.
func (r Report) Names() []string {
	names := make([]string, len(r.Results))
	for i, res := range r.Results {
		names[i] = res.Name
	}
	return names
}

// Set is an ordered, fixed list of actions.
type Set struct {
	actions  []Action
	logger   *slog.Logger
	metrics  metrics.Recorder
	onStart  func(Action)
	onResult func(Result)
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithLogger sets the logger for action failures.
func WithLogger(l *slog.Logger) SetOption {
	return func(s *Set) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) SetOption {
	return func(s *Set) { s.metrics = m }
}

// WithStartHook is called before each action runs.
func WithStartHook(fn func(Action)) SetOption {
	return func(s *Set) { s.onStart = fn }
}

// WithResultHook is called after each action with its result.
func WithResultHook(fn func(Result)) SetOption {
	return func(s *Set) { s.onResult = fn }
}

// NewSet creates a Set over actions. The slice is copied.
func NewSet(actions []Action, opts ...SetOption) *Set {
	s := &Set{
		actions: append([]Action(nil), actions...),
		logger:  slog.Default(),
		metrics: metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Names returns the action names in execution order.
func (s *Set) Names() []string {
	names := make([]string, len(s.actions))
	for i, a := range s.actions {
		names[i] = a.Name
	}
	return names
}

// Len returns the number of actions.
func (s *Set) Len() int {
	return len(s.actions)
}

// Run executes every action in order and returns their results.
//
// # Description
//
// Actions are not interrupted by cancellation of ctx: a pass that has started
// runs to the end. Each action still gets ctx's values and the per-command
// timeouts of the collaborators it calls.
func (s *Set) Run(ctx context.Context) Report {
	ctx = context.WithoutCancel(ctx)

	report := Report{Results: make([]Result, 0, len(s.actions))}
	for _, action := range s.actions {
		if s.onStart != nil {
			s.onStart(action)
		}

		start := time.Now()
		err := action.Run(ctx)
		res := Result{Name: action.Name, Err: err, Duration: time.Since(start)}

		if err != nil {
			s.logger.Warn("Remediation action failed", "action", action.Name, "error", err)
		} else {
			s.logger.Debug("Remediation action completed", "action", action.Name, "duration", res.Duration)
		}
		s.metrics.RecordRemediation(action.Name, err == nil)

		if s.onResult != nil {
			s.onResult(res)
		}
		report.Results = append(report.Results, res)
	}
	return report
}
