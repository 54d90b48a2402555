// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vpn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
)

const sampleStatus = "\r-\r  \r\r-\r  \rStatus: Connected\n" +
	"Hostname: de1234.nordvpn.com\n" +
	"IP: 185.0.0.1\n" +
	"Country: Germany\n" +
	"Current technology: NORDLYNX\n" +
	"Uptime: 2 minutes 3 seconds\n"

func TestParseStatus(t *testing.T) {
	st := ParseStatus(sampleStatus)

	assert.Equal(t, "Connected", st.State)
	assert.True(t, st.Connected())
	assert.Equal(t, "de1234.nordvpn.com", st.Fields["Hostname"])
	assert.Equal(t, "NORDLYNX", st.Fields["Current technology"])
	// Values containing colons keep everything after the first one.
	assert.Equal(t, "2 minutes 3 seconds", st.Fields["Uptime"])
}

func TestParseStatus_Disconnected(t *testing.T) {
	st := ParseStatus("Status: Disconnected\n")
	assert.False(t, st.Connected())

	empty := ParseStatus("")
	assert.Equal(t, "", empty.State)
	assert.False(t, empty.Connected())
}

func TestParseStatus_FirstValueWins(t *testing.T) {
	st := ParseStatus("Status: Connecting\nStatus: Connected\nServer: Germany #1\n")

	assert.Equal(t, "Connecting", st.State)
	assert.Equal(t, map[string]string{"Status": "Connecting", "Server": "Germany #1"}, st.Fields)
}

func TestCLIClient_Commands(t *testing.T) {
	mock := &process.MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			if args[0] == "status" {
				return []byte(sampleStatus), nil
			}
			return nil, nil
		},
		RunInteractiveFunc: func(ctx context.Context, name string, args ...string) error {
			return nil
		},
	}
	c := NewCLIClient(mock, ClientOptions{})
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))
	require.NoError(t, c.Login(ctx))
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Disconnect(ctx))
	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected())

	assert.Equal(t, []string{
		"nordvpn logout",
		"nordvpn login",
		"nordvpn connect",
		"nordvpn disconnect",
		"nordvpn status",
	}, mock.CommandLines())
	assert.Equal(t, "RunInteractive", mock.GetCalls()[1].Method)
}

func TestCLIClient_CustomBinaryAndDaemon(t *testing.T) {
	mock := &process.MockProcessManager{
		IsRunningFunc: func(ctx context.Context, pattern string) (bool, int, error) {
			return pattern == "protonvpnd", 99, nil
		},
	}
	c := NewCLIClient(mock, ClientOptions{Binary: "/opt/vpn/bin/vpn", Daemon: "protonvpnd"})

	running, pid, err := c.DaemonRunning(context.Background())
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 99, pid)
	assert.Equal(t, "/opt/vpn/bin/vpn", c.Binary())
}

func TestCLIClient_ConnectFailure(t *testing.T) {
	mock := &process.MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, util.NewCommandError("nordvpn connect", 1, "Whoops! Connection failed.", nil)
		},
	}
	c := NewCLIClient(mock, ClientOptions{})

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Whoops! Connection failed.", util.ExtractStderr(err))

	_, err = c.Status(context.Background())
	assert.Error(t, err)
}
