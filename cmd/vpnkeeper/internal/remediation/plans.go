// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package remediation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Host is the subset of system.Host used by the plans.
type Host interface {
	RestartService(ctx context.Context, unit string) error
	UnmaskService(ctx context.Context, unit string) error
	FlushIPTables(ctx context.Context) error
	FlushNFTables(ctx context.Context) error
	TailServiceLog(ctx context.Context, unit string, n int) (string, error)
	Ping(ctx context.Context, target string, count int) (string, error)
}

// VPNClient is the subset of vpn.CLIClient used by the plans.
type VPNClient interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Options parameterizes the standard plan.
type Options struct {
	// NetworkService is the network management unit. Default: NetworkManager.
	NetworkService string

	// VPNService is the VPN daemon unit. Default: nordvpnd.
	VPNService string

	// LogTailLines is how many journal lines to show. Zero drops the step.
	LogTailLines int

	// ProbeHost is pinged at the end of the pass. Empty drops the step.
	ProbeHost string

	// PingCount is the number of echo requests. Default: 3.
	PingCount int
}

// DefaultOptions returns the full seven-step configuration.
func DefaultOptions() Options {
	return Options{
		NetworkService: "NetworkManager",
		VPNService:     "nordvpnd",
		LogTailLines:   20,
		ProbeHost:      "1.1.1.1",
		PingCount:      3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NetworkService == "" {
		o.NetworkService = d.NetworkService
	}
	if o.VPNService == "" {
		o.VPNService = d.VPNService
	}
	if o.PingCount <= 0 {
		o.PingCount = d.PingCount
	}
	return o
}

// Standard returns the recovery plan in its fixed order. Output from the
// log tail and the probe is written to out.
func Standard(host Host, client VPNClient, out io.Writer, opts Options) []Action {
	opts = opts.withDefaults()
	if out == nil {
		out = io.Discard
	}

	actions := []Action{
		restartNetwork(host, opts),
		{
			Name:        ActionFlushIPTables,
			Description: "Flush iptables rules",
			Run:         host.FlushIPTables,
		},
		{
			Name:        ActionFlushNFTables,
			Description: "Flush nftables ruleset",
			Run:         host.FlushNFTables,
		},
		restartVPNService(host, opts),
		{
			Name:        ActionReauthenticate,
			Description: "Log out and back in to the VPN client",
			Run: func(ctx context.Context) error {
				// Logout fails when the session is already gone; login still runs.
				logoutErr := client.Logout(ctx)
				loginErr := client.Login(ctx)
				if loginErr != nil {
					return errors.Join(loginErr, logoutErr)
				}
				return nil
			},
		},
	}

	if opts.LogTailLines > 0 {
		actions = append(actions, Action{
			Name:        ActionShowServiceLog,
			Description: fmt.Sprintf("Show last %d lines of %s log", opts.LogTailLines, opts.VPNService),
			Run: func(ctx context.Context) error {
				tail, err := host.TailServiceLog(ctx, opts.VPNService, opts.LogTailLines)
				if tail != "" {
					fmt.Fprintf(out, "--- %s (last %d lines) ---\n%s\n", opts.VPNService, opts.LogTailLines, tail)
				}
				return err
			},
		})
	}

	if opts.ProbeHost != "" {
		actions = append(actions, Action{
			Name:        ActionProbe,
			Description: "Ping " + opts.ProbeHost,
			Run: func(ctx context.Context) error {
				output, err := host.Ping(ctx, opts.ProbeHost, opts.PingCount)
				if summary := pingSummary(output); summary != "" {
					fmt.Fprintln(out, summary)
				}
				return err
			},
		})
	}

	return actions
}

// NetworkReset returns the reset plan: disconnect, restart networking, flush
// both firewalls, restart the VPN service. No reconnect is attempted.
func NetworkReset(host Host, client VPNClient, opts Options) []Action {
	opts = opts.withDefaults()
	return []Action{
		{
			Name:        ActionDisconnect,
			Description: "Disconnect the VPN client",
			Run:         client.Disconnect,
		},
		restartNetwork(host, opts),
		{
			Name:        ActionFlushIPTables,
			Description: "Flush iptables rules",
			Run:         host.FlushIPTables,
		},
		{
			Name:        ActionFlushNFTables,
			Description: "Flush nftables ruleset",
			Run:         host.FlushNFTables,
		},
		restartVPNService(host, opts),
	}
}

func restartNetwork(host Host, opts Options) Action {
	return Action{
		Name:        ActionRestartNetwork,
		Description: "Restart " + opts.NetworkService,
		Run: func(ctx context.Context) error {
			return host.RestartService(ctx, opts.NetworkService)
		},
	}
}

func restartVPNService(host Host, opts Options) Action {
	return Action{
		Name:        ActionRestartVPNService,
		Description: "Unmask and restart " + opts.VPNService,
		Run: func(ctx context.Context) error {
			unmaskErr := host.UnmaskService(ctx, opts.VPNService)
			restartErr := host.RestartService(ctx, opts.VPNService)
			return errors.Join(unmaskErr, restartErr)
		},
	}
}

// pingSummary returns the packet-loss and rtt lines of ping output.
func pingSummary(output string) string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "packet loss") || strings.HasPrefix(line, "rtt ") || strings.HasPrefix(line, "round-trip") {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
