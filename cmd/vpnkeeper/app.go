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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/config"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/diagnostics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/system"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/recovery"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/remediation"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/selfupdate"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/telemetry"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/vpn"
	"github.com/AleutianAI/vpnkeeper/pkg/logging"
	"github.com/AleutianAI/vpnkeeper/pkg/ux"
)

// updateLockName is the flock name guarding artifact replacement.
const updateLockName = "vpnkeeper-update"

// shutdownTimeout bounds telemetry flushing on exit.
const shutdownTimeout = 5 * time.Second

// app holds the collaborators for one invocation.
type app struct {
	cfg config.VPNKeeperConfig

	log       *logging.Logger
	logger    *slog.Logger
	telemetry *telemetry.Provider
	metrics   metrics.Recorder
	gatherer  prometheus.Gatherer

	host     *system.Host
	client   *vpn.CLIClient
	reporter *vpn.Reporter
	updater  *selfupdate.Controller
	sampler  *diagnostics.Sampler

	// out receives the service log tail and probe output.
	out io.Writer
}

// appOptions carries what newApp does not read from config.
type appOptions struct {
	// Args are the command-line arguments re-used on restart.
	Args []string

	// ProcessManager runs collaborator commands. Default: the real one.
	ProcessManager process.ProcessManager

	// Out defaults to os.Stdout.
	Out io.Writer
}

// newAppFromFlags loads config from --config (or the default path), applies
// --log-level and builds the app.
func newAppFromFlags(ctx context.Context) (*app, error) {
	var (
		cfg config.VPNKeeperConfig
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		err = config.Load()
		cfg = config.Global
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return newApp(ctx, cfg, appOptions{Args: os.Args[1:]})
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg config.VPNKeeperConfig, opts appOptions) (*app, error) {
	if opts.ProcessManager == nil {
		opts.ProcessManager = process.NewDefaultProcessManager()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{
		Level:  level,
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
	})
	if ferr := log.FileError(); ferr != nil {
		log.Warn("File logging disabled", "error", ferr)
	}
	slog.SetDefault(log.Slog())

	a := &app{cfg: cfg, log: log, logger: log.Slog(), out: opts.Out}

	a.telemetry, err = telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.metrics, a.gatherer, err = buildMetrics(cfg.Metrics, a.telemetry)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	requested := util.TimeoutConfig{
		HTTP:    cfg.Update.HTTPTimeout,
		Process: cfg.System.CommandTimeout,
		Login:   cfg.VPN.LoginTimeout,
	}
	timeouts := requested.Validated()

	pm := opts.ProcessManager
	a.host = system.NewHost(pm, system.HostOptions{
		UseSudo:        cfg.System.UseSudo,
		CommandTimeout: timeouts.Process,
	})
	a.client = vpn.NewCLIClient(pm, vpn.ClientOptions{
		Binary:   cfg.VPN.CLI,
		Daemon:   cfg.VPN.Daemon,
		Timeouts: timeouts,
	})
	ips := vpn.NewIPResolver(&http.Client{Timeout: timeouts.HTTP}, a.logger, cfg.Network.IPEchoURLs...)
	a.reporter = vpn.NewReporter(ips, a.host, a.client)

	artifact, err := resolveArtifactPath(cfg.Update.ArtifactPath)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	lockConfig := process.DefaultProcessLockConfig()
	lockConfig.LockName = updateLockName
	if cfg.Update.LockDir != "" {
		lockConfig.LockDir = cfg.Update.LockDir
	}
	source := selfupdate.NewHTTPSource(&http.Client{Timeout: timeouts.HTTP}, cfg.Update.SourceURL, cfg.Update.VersionURL)
	a.updater, err = selfupdate.NewController(source, selfupdate.Options{
		ArtifactPath: artifact,
		BackupSuffix: cfg.Update.BackupSuffix,
		LocalVersion: selfupdate.VersionToken(version),
		Args:         opts.Args,
		Lock:         process.NewProcessLock(lockConfig),
		Logger:       a.logger,
		Metrics:      a.metrics,
		Tracer:       a.telemetry.Tracer(),
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.sampler, err = diagnostics.NewSampler(diagnostics.NewFileStore(cfg.Diagnostics.ReportPath), diagnostics.SamplerOptions{
		Logger:  a.logger,
		Metrics: a.metrics,
		Tracer:  a.telemetry.Tracer(),
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

// Close writes the metrics textfile, flushes telemetry and closes the log file.
func (a *app) Close(ctx context.Context) {
	if path := a.cfg.Metrics.TextfilePath; path != "" && a.gatherer != nil {
		if err := metrics.WriteTextfile(path, a.gatherer); err != nil {
			a.logger.Warn("Could not write metrics textfile", "error", err)
		}
	}

	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("Telemetry shutdown failed", "error", err)
		}
		cancel()
	}

	if err := a.log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

func (a *app) remediationOptions() remediation.Options {
	return remediation.Options{
		NetworkService: a.cfg.Network.Service,
		VPNService:     a.cfg.VPN.Service,
		LogTailLines:   a.cfg.Recovery.LogTailLines,
		ProbeHost:      a.cfg.Network.ProbeHost,
	}
}

// newSet wraps actions with console hooks and the app's logger and metrics.
func (a *app) newSet(actions []remediation.Action) *remediation.Set {
	return remediation.NewSet(actions,
		remediation.WithLogger(a.logger),
		remediation.WithMetrics(a.metrics),
		remediation.WithStartHook(func(act remediation.Action) {
			ux.Muted("→ " + act.Description)
		}),
		remediation.WithResultHook(func(r remediation.Result) {
			ux.ActionStatus(r.Name, r.Err)
		}),
	)
}

// newMachine builds a recovery machine over the standard remediation set.
// Delay, Logger, Metrics and Tracer in opts are filled from the app.
func (a *app) newMachine(opts recovery.Options) (*recovery.Machine, error) {
	set := a.newSet(remediation.Standard(a.host, a.client, a.out, a.remediationOptions()))
	opts.Delay = a.cfg.Recovery.Delay
	opts.Logger = a.logger
	opts.Metrics = a.metrics
	opts.Tracer = a.telemetry.Tracer()
	return recovery.NewMachine(set, a.client, a.reporter, opts)
}

// telemetryConfig maps the telemetry and metrics sections onto telemetry.Config.
// An OTEL_EXPORTER_OTLP_ENDPOINT picked up by telemetry.DefaultConfig is kept
// unless the file selects a trace exporter explicitly.
func telemetryConfig(cfg config.VPNKeeperConfig) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	if cfg.Telemetry.TraceExporter != telemetry.ExporterNone {
		tc.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	tc.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	if cfg.Metrics.Backend == config.MetricsOTel {
		tc.MetricExporter = cfg.Telemetry.MetricExporter
	}
	return tc
}

// buildMetrics returns the recorder for the configured backend and, when the
// backend keeps a Prometheus registry, its gatherer.
func buildMetrics(cfg config.MetricsConfig, tp *telemetry.Provider) (metrics.Recorder, prometheus.Gatherer, error) {
	switch cfg.Backend {
	case config.MetricsPrometheus:
		m, err := metrics.NewPrometheus()
		if err != nil {
			return nil, nil, err
		}
		return m, m.Gatherer(), nil

	case config.MetricsOTel:
		m, err := metrics.NewOTel(tp.Meter())
		if err != nil {
			return nil, nil, err
		}
		return m, tp.Gatherer(), nil

	default:
		return metrics.NewNoOp(), nil, nil
	}
}

// resolveArtifactPath returns the absolute path of the file the updater
// replaces: the configured one, or the running executable with symlinks
// resolved.
func resolveArtifactPath(configured string) (string, error) {
	if configured != "" {
		abs, err := filepath.Abs(configured)
		if err != nil {
			return "", fmt.Errorf("resolve update.artifact_path: %w", err)
		}
		return abs, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate running executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", exe, err)
	}
	return resolved, nil
}
