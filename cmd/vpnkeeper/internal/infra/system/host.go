// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package system wraps the host commands vpnkeeper uses to repair networking:
// systemd units, firewall rule sets, the journal, ping and the routing table.
//
// Every method is a thin call through process.ProcessManager. Failures come
// back as *util.CommandError so callers can log exit code and stderr.
package system

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
)

// HostOptions configures a Host.
type HostOptions struct {
	// UseSudo prefixes privileged commands with "sudo".
	UseSudo bool

	// CommandTimeout bounds each command. Zero uses util.DefaultProcessTimeout.
	CommandTimeout time.Duration
}

// Host executes service, firewall and network commands on the local machine.
//
// # Thread Safety
//
// Host holds no mutable state and is safe for concurrent use if the
// underlying ProcessManager is.
type Host struct {
	pm      process.ProcessManager
	useSudo bool
	timeout time.Duration
}

// NewHost creates a Host backed by pm.
func NewHost(pm process.ProcessManager, opts HostOptions) *Host {
	timeout := util.EnforceDefaultTimeout(opts.CommandTimeout, util.DefaultProcessTimeout)
	return &Host{
		pm:      pm,
		useSudo: opts.UseSudo,
		timeout: util.EnforceMinTimeout(timeout, util.MinProcessTimeout),
	}
}

// RestartService runs "systemctl restart <unit>".
func (h *Host) RestartService(ctx context.Context, unit string) error {
	_, err := h.privileged(ctx, "systemctl", "restart", unit)
	return err
}

// UnmaskService runs "systemctl unmask <unit>".
func (h *Host) UnmaskService(ctx context.Context, unit string) error {
	_, err := h.privileged(ctx, "systemctl", "unmask", unit)
	return err
}

// ServiceActive reports whether "systemctl is-active <unit>" succeeds.
// A non-zero exit is "inactive", not an error.
func (h *Host) ServiceActive(ctx context.Context, unit string) bool {
	_, err := h.run(ctx, false, "systemctl", "is-active", "--quiet", unit)
	return err == nil
}

// FlushIPTables removes every rule from the iptables filter table.
func (h *Host) FlushIPTables(ctx context.Context) error {
	_, err := h.privileged(ctx, "iptables", "-F")
	return err
}

// FlushNFTables removes the entire nftables ruleset.
func (h *Host) FlushNFTables(ctx context.Context) error {
	_, err := h.privileged(ctx, "nft", "flush", "ruleset")
	return err
}

// TailServiceLog returns the last n journal lines for unit.
//
// # Inputs
//
//   - unit: systemd unit name, e.g. "nordvpnd"
//   - n: number of lines; values below 1 are treated as 1
//
// # Outputs
//
//   - string: journal text with trailing whitespace trimmed
//   - error: *util.CommandError if journalctl fails
func (h *Host) TailServiceLog(ctx context.Context, unit string, n int) (string, error) {
	if n < 1 {
		n = 1
	}
	out, err := h.privileged(ctx, "journalctl", "-u", unit, "-n", strconv.Itoa(n), "--no-pager")
	return strings.TrimRight(string(out), "\n\t "), err
}

// Ping sends count ICMP echo requests to target and returns ping's output.
func (h *Host) Ping(ctx context.Context, target string, count int) (string, error) {
	if count < 1 {
		count = 1
	}
	out, err := h.run(ctx, false, "ping", "-c", strconv.Itoa(count), target)
	return strings.TrimSpace(string(out)), err
}

// DefaultRoute returns the output of "ip route show default".
func (h *Host) DefaultRoute(ctx context.Context) (string, error) {
	out, err := h.run(ctx, false, "ip", "route", "show", "default")
	if err != nil {
		return "", err
	}
	route := strings.TrimSpace(string(out))
	if route == "" {
		return "", fmt.Errorf("no default route")
	}
	return route, nil
}

func (h *Host) privileged(ctx context.Context, name string, args ...string) ([]byte, error) {
	return h.run(ctx, h.useSudo, name, args...)
}

func (h *Host) run(ctx context.Context, sudo bool, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if sudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	return h.pm.Run(ctx, name, args...)
}
