// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".vpnkeeper", "vpnkeeper.yaml")

	require.NoError(t, createDefault(configPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var cfg VPNKeeperConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Contains(t, string(data), "duration: 30s", "durations are written as strings")
}

// TestLoadFrom_FirstRun verifies the file is created and loaded.
func TestLoadFrom_FirstRun(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "deep", "nested", "vpnkeeper.yaml")

	cfg, err := LoadFrom(configPath)
	require.NoError(t, err)

	assert.FileExists(t, configPath)
	assert.Equal(t, 30*time.Second, cfg.Recovery.Duration)
	assert.Equal(t, "nordvpn", cfg.VPN.CLI)
}

// TestLoadFrom_PartialFileKeepsDefaults verifies missing keys fall back.
func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vpnkeeper.yaml")
	content := `
recovery:
  duration: 2m
network:
  service: systemd-networkd
  ip_echo_urls:
    - https://ipv4.icanhazip.com
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFrom(configPath)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Recovery.Duration)
	assert.Equal(t, 5*time.Second, cfg.Recovery.Delay)
	assert.Equal(t, "systemd-networkd", cfg.Network.Service)
	assert.Equal(t, []string{"https://ipv4.icanhazip.com"}, cfg.Network.IPEchoURLs)
	assert.Equal(t, ".bak", cfg.Update.BackupSuffix)
}

// TestLoadFrom_EnvOverrides verifies VPNKEEPER_* variables win over the file.
func TestLoadFrom_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vpnkeeper.yaml")
	require.NoError(t, createDefault(configPath))

	t.Setenv("VPNKEEPER_RECOVERY_DURATION", "45s")
	t.Setenv("VPNKEEPER_SYSTEM_USE_SUDO", "false")
	t.Setenv("VPNKEEPER_NETWORK_IP_ECHO_URLS", "https://a.example/ip,https://b.example/ip")
	t.Setenv("VPNKEEPER_METRICS_BACKEND", "prometheus")
	t.Setenv("VPNKEEPER_LOG_LEVEL", "debug")

	cfg, err := LoadFrom(configPath)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Recovery.Duration)
	assert.False(t, cfg.System.UseSudo)
	assert.Equal(t, []string{"https://a.example/ip", "https://b.example/ip"}, cfg.Network.IPEchoURLs)
	assert.Equal(t, MetricsPrometheus, cfg.Metrics.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// TestLoadFrom_InvalidEnv verifies unparseable overrides are reported.
func TestLoadFrom_InvalidEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vpnkeeper.yaml")
	require.NoError(t, createDefault(configPath))

	t.Setenv("VPNKEEPER_RECOVERY_DELAY", "soon")

	_, err := LoadFrom(configPath)
	assert.ErrorContains(t, err, "environment overrides")
}

// TestLoadFrom_InvalidYAML verifies parse errors name the file.
func TestLoadFrom_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vpnkeeper.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("recovery: [unclosed"), 0644))

	_, err := LoadFrom(configPath)
	assert.ErrorContains(t, err, configPath)
}

// TestValidate covers the field constraints.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VPNKeeperConfig)
		wantErr string
	}{
		{"defaults", func(*VPNKeeperConfig) {}, ""},
		{"zero recovery duration", func(c *VPNKeeperConfig) { c.Recovery.Duration = 0 }, ""},
		{"negative delay", func(c *VPNKeeperConfig) { c.Recovery.Delay = -time.Second }, "Recovery.Delay"},
		{"bad source url", func(c *VPNKeeperConfig) { c.Update.SourceURL = "not a url" }, "Update.SourceURL"},
		{"missing source url", func(c *VPNKeeperConfig) { c.Update.SourceURL = "" }, "required"},
		{"bad echo url", func(c *VPNKeeperConfig) { c.Network.IPEchoURLs = []string{"::"} }, "Network.IPEchoURLs[0]"},
		{"unknown backend", func(c *VPNKeeperConfig) { c.Metrics.Backend = "statsd" }, "Metrics.Backend"},
		{"unknown log level", func(c *VPNKeeperConfig) { c.Logging.Level = "verbose" }, "Logging.Level"},
		{"otlp without endpoint", func(c *VPNKeeperConfig) { c.Telemetry.TraceExporter = "otlp" }, "Telemetry.OTLPEndpoint"},
		{"otlp with endpoint", func(c *VPNKeeperConfig) {
			c.Telemetry.TraceExporter = "otlp"
			c.Telemetry.OTLPEndpoint = "localhost:4317"
		}, ""},
		{"empty probe host", func(c *VPNKeeperConfig) { c.Network.ProbeHost = "" }, ""},
		{"zero http timeout", func(c *VPNKeeperConfig) { c.Update.HTTPTimeout = 0 }, "Update.HTTPTimeout"},
		{"missing vpn cli", func(c *VPNKeeperConfig) { c.VPN.CLI = "" }, "VPN.CLI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
