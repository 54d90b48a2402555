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
	"time"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsOTel       = "otel"
)

// VPNKeeperConfig is the on-disk configuration at ~/.vpnkeeper/vpnkeeper.yaml.
//
// Every field can be overridden from the environment with the VPNKEEPER_
// prefix, e.g. VPNKEEPER_RECOVERY_DURATION=45s.
type VPNKeeperConfig struct {
	// Update: where new releases come from and which file they replace
	Update UpdateConfig `yaml:"update" envPrefix:"UPDATE_"`

	// VPN: the client binary and its daemon
	VPN VPNConfig `yaml:"vpn" envPrefix:"VPN_"`

	// Network: services and endpoints used by remediation and status
	Network NetworkConfig `yaml:"network" envPrefix:"NETWORK_"`

	Recovery    RecoveryConfig    `yaml:"recovery" envPrefix:"RECOVERY_"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics" envPrefix:"DIAGNOSTICS_"`
	Logging     LoggingConfig     `yaml:"logging" envPrefix:"LOG_"`
	Metrics     MetricsConfig     `yaml:"metrics" envPrefix:"METRICS_"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	System      SystemConfig      `yaml:"system" envPrefix:"SYSTEM_"`
}

type UpdateConfig struct {
	SourceURL  string `yaml:"source_url" env:"SOURCE_URL" validate:"required,url"`
	VersionURL string `yaml:"version_url,omitempty" env:"VERSION_URL" validate:"omitempty,url"`

	// ArtifactPath is the file replaced on update. Empty means the running executable.
	ArtifactPath string        `yaml:"artifact_path,omitempty" env:"ARTIFACT_PATH"`
	BackupSuffix string        `yaml:"backup_suffix" env:"BACKUP_SUFFIX" validate:"required"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT" validate:"gt=0"`

	// LockDir holds the update lock. Empty means the system temp directory.
	LockDir string `yaml:"lock_dir,omitempty" env:"LOCK_DIR"`
}

type VPNConfig struct {
	CLI     string `yaml:"cli" env:"CLI" validate:"required"`
	Daemon  string `yaml:"daemon" env:"DAEMON" validate:"required"`
	Service string `yaml:"service" env:"SERVICE" validate:"required"`

	// LoginTimeout bounds the interactive login flow.
	LoginTimeout time.Duration `yaml:"login_timeout" env:"LOGIN_TIMEOUT" validate:"gt=0"`
}

type NetworkConfig struct {
	Service    string   `yaml:"service" env:"SERVICE" validate:"required"`
	ProbeHost  string   `yaml:"probe_host" env:"PROBE_HOST" validate:"omitempty,hostname_rfc1123|ip"`
	IPEchoURLs []string `yaml:"ip_echo_urls" env:"IP_ECHO_URLS" validate:"dive,url"`
}

type RecoveryConfig struct {
	Duration     time.Duration `yaml:"duration" env:"DURATION" validate:"gte=0"`
	Delay        time.Duration `yaml:"delay" env:"DELAY" validate:"gte=0"`
	LogTailLines int           `yaml:"log_tail_lines" env:"LOG_TAIL_LINES" validate:"gte=0,lte=10000"`
}

type DiagnosticsConfig struct {
	ReportPath string `yaml:"report_path" env:"REPORT_PATH" validate:"required"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`

	// Dir receives JSON log files. Empty disables file logging.
	Dir  string `yaml:"dir,omitempty" env:"DIR"`
	JSON bool   `yaml:"json" env:"JSON"`
}

type MetricsConfig struct {
	Backend string `yaml:"backend" env:"BACKEND" validate:"oneof=none prometheus otel"`

	// TextfilePath, when set, receives the Prometheus exposition after each command.
	TextfilePath string `yaml:"textfile_path,omitempty" env:"TEXTFILE_PATH"`
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" env:"TRACE_EXPORTER" validate:"oneof=none otlp stdout"`
	MetricExporter string `yaml:"metric_exporter" env:"METRIC_EXPORTER" validate:"oneof=prometheus stdout"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty" env:"OTLP_ENDPOINT" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `yaml:"otlp_insecure" env:"OTLP_INSECURE"`
}

type SystemConfig struct {
	// UseSudo prefixes privileged commands with sudo.
	UseSudo bool `yaml:"use_sudo" env:"USE_SUDO"`

	CommandTimeout time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT" validate:"gt=0"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() VPNKeeperConfig {
	return VPNKeeperConfig{
		Update: UpdateConfig{
			SourceURL:    "https://github.com/AleutianAI/vpnkeeper/releases/latest/download/vpnkeeper-linux-amd64",
			VersionURL:   "https://github.com/AleutianAI/vpnkeeper/releases/latest/download/VERSION",
			BackupSuffix: ".bak",
			HTTPTimeout:  30 * time.Second,
		},
		VPN: VPNConfig{
			CLI:          "nordvpn",
			Daemon:       "nordvpnd",
			Service:      "nordvpnd",
			LoginTimeout: 5 * time.Minute,
		},
		Network: NetworkConfig{
			Service:   "NetworkManager",
			ProbeHost: "1.1.1.1",
			IPEchoURLs: []string{
				"https://api.ipify.org",
				"https://ifconfig.me/ip",
				"https://icanhazip.com",
			},
		},
		Recovery: RecoveryConfig{
			Duration:     30 * time.Second,
			Delay:        5 * time.Second,
			LogTailLines: 20,
		},
		Diagnostics: DiagnosticsConfig{
			ReportPath: "diagnosis.csv",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Backend: MetricsNone,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPInsecure:   true,
		},
		System: SystemConfig{
			UseSudo:        true,
			CommandTimeout: 30 * time.Second,
		},
	}
}
