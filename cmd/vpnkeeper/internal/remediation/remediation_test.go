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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/system"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/vpn"
)

const pingOutput = `PING 1.1.1.1 (1.1.1.1) 56(84) bytes of data.
64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=11.2 ms

--- 1.1.1.1 ping statistics ---
3 packets transmitted, 3 received, 0% packet loss, time 2003ms
rtt min/avg/max/mdev = 11.0/11.2/11.5/0.2 ms`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newCollaborators wires real system.Host and vpn.CLIClient over a mock
// process manager. failing lists command prefixes that should fail.
func newCollaborators(failing ...string) (*process.MockProcessManager, *system.Host, *vpn.CLIClient) {
	fail := func(line string) error {
		for _, prefix := range failing {
			if strings.HasPrefix(line, prefix) {
				return util.NewCommandError(line, 1, "simulated failure", nil)
			}
		}
		return nil
	}
	mock := &process.MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			line := util.CommandLine(name, args...)
			out := []byte("")
			switch name {
			case "journalctl":
				out = []byte("Oct 16 10:00:01 host nordvpnd[812]: connection lost")
			case "ping":
				out = []byte(pingOutput)
			}
			return out, fail(line)
		},
		RunInteractiveFunc: func(ctx context.Context, name string, args ...string) error {
			return fail(util.CommandLine(name, args...))
		},
	}
	return mock, system.NewHost(mock, system.HostOptions{}), vpn.NewCLIClient(mock, vpn.ClientOptions{})
}

// =============================================================================
// Standard Plan
// =============================================================================

func TestStandard_FixedOrder(t *testing.T) {
	mock, host, client := newCollaborators()
	var out bytes.Buffer

	set := NewSet(Standard(host, client, &out, DefaultOptions()), WithLogger(quietLogger()))
	report := set.Run(context.Background())

	assert.Equal(t, []string{
		ActionRestartNetwork,
		ActionFlushIPTables,
		ActionFlushNFTables,
		ActionRestartVPNService,
		ActionReauthenticate,
		ActionShowServiceLog,
		ActionProbe,
	}, report.Names())
	assert.Empty(t, report.Failed())

	assert.Equal(t, []string{
		"systemctl restart NetworkManager",
		"iptables -F",
		"nft flush ruleset",
		"systemctl unmask nordvpnd",
		"systemctl restart nordvpnd",
		"nordvpn logout",
		"nordvpn login",
		"journalctl -u nordvpnd -n 20 --no-pager",
		"ping -c 3 1.1.1.1",
	}, mock.CommandLines())

	assert.Contains(t, out.String(), "connection lost")
	assert.Contains(t, out.String(), "0% packet loss")
	assert.NotContains(t, out.String(), "icmp_seq")
}

func TestStandard_OptionalStepsDropped(t *testing.T) {
	_, host, client := newCollaborators()

	actions := Standard(host, client, nil, Options{LogTailLines: 0, ProbeHost: ""})
	set := NewSet(actions)

	assert.Equal(t, []string{
		ActionRestartNetwork,
		ActionFlushIPTables,
		ActionFlushNFTables,
		ActionRestartVPNService,
		ActionReauthenticate,
	}, set.Names())
}

func TestSet_ContinuesAfterFailures(t *testing.T) {
	mock, host, client := newCollaborators("iptables", "nft", "nordvpn logout")
	rec := metrics.NewNoOp()

	var seen []string
	set := NewSet(Standard(host, client, nil, DefaultOptions()),
		WithLogger(quietLogger()),
		WithMetrics(rec),
		WithResultHook(func(r Result) { seen = append(seen, r.Name) }),
	)
	report := set.Run(context.Background())

	require.Len(t, report.Results, 7, "every action runs")
	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, ActionFlushIPTables, failed[0].Name)
	assert.Equal(t, ActionFlushNFTables, failed[1].Name)

	var cmdErr *util.CommandError
	assert.True(t, errors.As(failed[0].Err, &cmdErr))

	assert.Equal(t, report.Names(), seen)
	assert.Contains(t, mock.CommandLines(), "nordvpn login", "login runs after failed logout")

	total, fails := rec.Remediations()
	assert.Equal(t, int64(7), total)
	assert.Equal(t, int64(2), fails)
}

func TestStandard_UnmaskFailureStillRestarts(t *testing.T) {
	mock, host, client := newCollaborators("systemctl unmask")

	report := NewSet(Standard(host, client, nil, DefaultOptions()), WithLogger(quietLogger())).
		Run(context.Background())

	assert.Contains(t, mock.CommandLines(), "systemctl restart nordvpnd")
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, ActionRestartVPNService, failed[0].Name)
}

func TestStandard_LoginFailureReported(t *testing.T) {
	_, host, client := newCollaborators("nordvpn login")

	report := NewSet(Standard(host, client, nil, DefaultOptions()), WithLogger(quietLogger())).
		Run(context.Background())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, ActionReauthenticate, failed[0].Name)
}

func TestSet_RunIgnoresCancellation(t *testing.T) {
	mock, host, client := newCollaborators()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewSet(NetworkReset(host, client, DefaultOptions()), WithLogger(quietLogger())).Run(ctx)

	assert.Len(t, report.Results, 5)
	assert.Empty(t, report.Failed())
	assert.Len(t, mock.GetCalls(), 6)
}

// =============================================================================
// NetworkReset Plan
// =============================================================================

func TestNetworkReset_Order(t *testing.T) {
	mock, host, client := newCollaborators()

	var started []string
	set := NewSet(NetworkReset(host, client, Options{NetworkService: "systemd-networkd", VPNService: "protonvpnd"}),
		WithLogger(quietLogger()),
		WithStartHook(func(a Action) { started = append(started, a.Name) }),
	)
	set.Run(context.Background())

	assert.Equal(t, set.Names(), started)
	assert.Equal(t, []string{
		"nordvpn disconnect",
		"systemctl restart systemd-networkd",
		"iptables -F",
		"nft flush ruleset",
		"systemctl unmask protonvpnd",
		"systemctl restart protonvpnd",
	}, mock.CommandLines())
}

func TestPingSummary(t *testing.T) {
	assert.Equal(t,
		"3 packets transmitted, 3 received, 0% packet loss, time 2003ms\nrtt min/avg/max/mdev = 11.0/11.2/11.5/0.2 ms",
		pingSummary(pingOutput))
	assert.Equal(t, "", pingSummary("ping: connect: Network is unreachable"))
}
