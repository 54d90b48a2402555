// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vpn wraps the VPN client command line and the status display
// (public address, default route, connection state).
package vpn

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
)

// DefaultBinary is the VPN client executable used when none is configured.
const DefaultBinary = "nordvpn"

// DefaultDaemon is the process pattern of the VPN client's daemon.
const DefaultDaemon = "nordvpnd"

// ClientOptions configures a CLIClient.
type ClientOptions struct {
	// Binary is the VPN client executable. Default: DefaultBinary.
	Binary string

	// Daemon is the pgrep pattern for the client daemon. Default: DefaultDaemon.
	Daemon string

	// Timeouts bounds connect/status calls (Process) and the login flow (Login).
	Timeouts util.TimeoutConfig
}

// CLIClient drives the VPN client binary.
//
// Every operation maps to one invocation of the binary. Success is the
// command's zero exit status; failures are *util.CommandError.
type CLIClient struct {
	pm       process.ProcessManager
	binary   string
	daemon   string
	timeouts util.TimeoutConfig
}

// NewCLIClient creates a CLIClient backed by pm.
func NewCLIClient(pm process.ProcessManager, opts ClientOptions) *CLIClient {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Daemon == "" {
		opts.Daemon = DefaultDaemon
	}
	if opts.Timeouts == (util.TimeoutConfig{}) {
		opts.Timeouts = util.NewTimeoutConfig()
	}
	return &CLIClient{
		pm:       pm,
		binary:   opts.Binary,
		daemon:   opts.Daemon,
		timeouts: opts.Timeouts.Validated(),
	}
}

// Binary returns the configured executable name.
func (c *CLIClient) Binary() string {
	return c.binary
}

// Login runs the interactive login flow attached to the terminal.
func (c *CLIClient) Login(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Login)
	defer cancel()
	return c.pm.RunInteractive(ctx, c.binary, "login")
}

// Logout ends the current session.
func (c *CLIClient) Logout(ctx context.Context) error {
	_, err := c.run(ctx, c.timeouts.Process, "logout")
	return err
}

// Connect asks the client to establish a tunnel. A nil error is success.
func (c *CLIClient) Connect(ctx context.Context) error {
	_, err := c.run(ctx, c.timeouts.Process, "connect")
	return err
}

// Disconnect tears down the tunnel.
func (c *CLIClient) Disconnect(ctx context.Context) error {
	_, err := c.run(ctx, c.timeouts.Process, "disconnect")
	return err
}

// Status queries the client and parses its "Key: Value" output.
func (c *CLIClient) Status(ctx context.Context) (Status, error) {
	out, err := c.run(ctx, c.timeouts.Process, "status")
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(string(out)), nil
}

// DaemonRunning reports whether the client daemon process exists.
func (c *CLIClient) DaemonRunning(ctx context.Context) (bool, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Process)
	defer cancel()
	return c.pm.IsRunning(ctx, c.daemon)
}

func (c *CLIClient) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.pm.Run(ctx, c.binary, args...)
}

// Status is the parsed output of the client's status command.
type Status struct {
	// State is the value of the "Status" field, e.g. "Connected".
	State string

	// Fields maps each key to the value of its first "Key: Value" line.
	Fields map[string]string

	// Raw is the unparsed output.
	Raw string
}

// Connected reports whether State is "Connected" (case-insensitive).
func (s Status) Connected() bool {
	return strings.EqualFold(s.State, "connected")
}

// ParseStatus extracts "Key: Value" pairs from status output.
//
// Lines without a colon, and spinner residue such as "-" or "\", are ignored.
func ParseStatus(out string) Status {
	st := Status{Fields: make(map[string]string), Raw: strings.TrimSpace(out)}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Spinner frames are overwritten with carriage returns.
		if i := strings.LastIndexByte(line, '\r'); i >= 0 {
			line = line[i+1:]
		}
		line = strings.TrimLeft(line, `-\|/ `)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if _, seen := st.Fields[key]; !seen {
			st.Fields[key] = value
		}
	}
	st.State = st.Fields["Status"]
	return st
}
