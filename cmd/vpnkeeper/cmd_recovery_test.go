// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/config"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/recovery"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
)

// hostMock answers collaborator commands. connect fails unless connectOK.
func hostMock(connectOK bool) *process.MockProcessManager {
	return &process.MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			line := util.CommandLine(name, args...)
			switch {
			case line == "nordvpn connect" && !connectOK:
				return nil, util.NewCommandError(line, 1, "Whoops! Connection failed.", nil)
			case line == "nordvpn status":
				return []byte("Status: Connected\nCountry: Germany\n"), nil
			case strings.HasPrefix(line, "ip route"):
				return []byte("default via 10.5.0.1 dev nordlynx\n"), nil
			case strings.HasPrefix(line, "ping"):
				return []byte("3 packets transmitted, 3 received, 0% packet loss, time 2003ms\n"), nil
			}
			return nil, nil
		},
		RunInteractiveFunc: func(ctx context.Context, name string, args ...string) error {
			return nil
		},
		IsRunningFunc: func(ctx context.Context, pattern string) (bool, int, error) {
			return true, 4242, nil
		},
	}
}

func newRecoveryApp(t *testing.T, pm *process.MockProcessManager, mutate func(*config.VPNKeeperConfig)) *app {
	t.Helper()
	t.Setenv(RestartedEnv, "")
	srv := newReleaseServer(t, http.StatusOK, localScript)
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "203.0.113.7\n")
	}))
	t.Cleanup(echo.Close)

	a, _ := buildTestApp(t, srv, pm, func(cfg *config.VPNKeeperConfig) {
		cfg.System.UseSudo = false
		cfg.Network.IPEchoURLs = []string{echo.URL}
		if mutate != nil {
			mutate(cfg)
		}
	})
	useKeeper(t, a)
	return a
}

func TestRunReset_RunsNetworkResetInOrder(t *testing.T) {
	pm := hostMock(true)
	newRecoveryApp(t, pm, nil)

	require.NoError(t, runReset(commandWithContext(t.Context()), nil))

	assert.Equal(t, []string{
		"nordvpn disconnect",
		"systemctl restart NetworkManager",
		"iptables -F",
		"nft flush ruleset",
		"systemctl unmask nordvpnd",
		"systemctl restart nordvpnd",
		"systemctl is-active --quiet nordvpnd",
	}, pm.CommandLines())
}

func TestRunConnect_SuccessCollectsStatus(t *testing.T) {
	pm := hostMock(true)
	newRecoveryApp(t, pm, nil)

	require.NoError(t, runConnect(commandWithContext(t.Context()), nil))

	lines := pm.CommandLines()
	assert.Equal(t, "nordvpn connect", lines[0])
	assert.Contains(t, lines, "nordvpn status")
	assert.Contains(t, lines, "ip route show default")
	assert.NotContains(t, lines, "iptables -F")
}

func TestRunConnect_NonInteractiveFailureRunsNothingElse(t *testing.T) {
	pm := hostMock(false)
	newRecoveryApp(t, pm, nil)

	require.NoError(t, runConnect(commandWithContext(t.Context()), nil))

	assert.Equal(t, []string{"nordvpn connect"}, pm.CommandLines())
}

func TestRunBruteforce_ZeroDurationSingleAttempt(t *testing.T) {
	pm := hostMock(false)
	newRecoveryApp(t, pm, func(cfg *config.VPNKeeperConfig) {
		cfg.Recovery.Duration = 0
	})

	start := time.Now()
	require.NoError(t, runBruteforce(commandWithContext(t.Context()), nil))

	connects := 0
	for _, l := range pm.CommandLines() {
		if l == "nordvpn connect" {
			connects++
		}
	}
	assert.Equal(t, 1, connects)
	assert.Less(t, time.Since(start), recovery.DefaultDelay)
}

func TestRunBruteforce_SuccessReportsStatus(t *testing.T) {
	pm := hostMock(true)
	newRecoveryApp(t, pm, nil)

	require.NoError(t, runBruteforce(commandWithContext(t.Context()), nil))

	lines := pm.CommandLines()
	assert.Equal(t, "systemctl restart NetworkManager", lines[0])
	assert.Contains(t, lines, "nordvpn connect")
	assert.Contains(t, lines, "nordvpn status")
}

func TestConfirmPrompter_NotInteractive(t *testing.T) {
	resp, err := confirmPrompter{}.Confirm(t.Context(), recovery.TroubleshootQuestion)

	assert.Equal(t, recovery.ResponseUnknown, resp)
	assert.Error(t, err)
}

func TestConfirmPrompter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := confirmPrompter{}.Confirm(ctx, recovery.TroubleshootQuestion)

	assert.Equal(t, recovery.ResponseUnknown, resp)
	assert.True(t, errors.Is(err, context.Canceled))
}

type countingClock struct {
	recovery.RealClock
	sleeps int
}

func (c *countingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	return nil
}

func TestProgressClock_Delegates(t *testing.T) {
	inner := &countingClock{}
	clock := progressClock{Clock: inner}

	require.NoError(t, clock.Sleep(t.Context(), time.Hour))

	assert.Equal(t, 1, inner.sleeps)
	assert.WithinDuration(t, time.Now(), clock.Now(), time.Second)
}
