// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/infra/process"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/metrics"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/resilience"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/telemetry"
)

var (
	// ErrArtifactWrite wraps backup, replace and verify failures.
	ErrArtifactWrite = errors.New("artifact write failed")

	// ErrUpdateInProgress is returned when another process holds the update lock.
	ErrUpdateInProgress = errors.New("another update is in progress")
)

// Outcome is the terminal result of CheckAndUpdate or PerformUpdate.
type Outcome int

const (
	// OutcomeSkipped means the remote version could not be determined.
	OutcomeSkipped Outcome = iota
	// OutcomeUpToDate means local and remote tokens are identical.
	OutcomeUpToDate
	// OutcomeUpdated means the artifact was replaced; Result.Restart is set.
	OutcomeUpdated
	// OutcomeFailed means an update was attempted and rolled back.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "up_to_date"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Restart tells the host to re-invoke the updated artifact and exit.
type Restart struct {
	// Path is the absolute path of the updated artifact.
	Path string
	// Args are the original command-line arguments, excluding argv[0].
	Args []string
}

// Result describes what CheckAndUpdate or PerformUpdate did.
type Result struct {
	Outcome   Outcome
	Local     VersionToken
	Remote    VersionToken
	Direction Direction
	Bytes     int64

	// Restart is non-nil only when Outcome is OutcomeUpdated.
	Restart *Restart
}

// Options configures a Controller.
type Options struct {
	// ArtifactPath is the absolute path of the running artifact.
	ArtifactPath string

	// BackupSuffix forms the backup path. Default: ".bak".
	BackupSuffix string

	// LocalVersion is the version compiled into the running artifact.
	LocalVersion VersionToken

	// Args are re-used for the Restart effect.
	Args []string

	// Lock guards PerformUpdate across processes. Nil disables locking.
	Lock process.ProcessLocker

	// StepTimeout bounds each saga step. Default: 2 minutes.
	StepTimeout time.Duration

	Logger  *slog.Logger
	Metrics metrics.Recorder
	Tracer  trace.Tracer
}

// Controller runs the self-update protocol for one artifact.
//
// # Description
//
// CheckAndUpdate compares the compiled-in version to the remote one and
// replaces the artifact when they differ. PerformUpdate replaces it
// unconditionally. Replacement runs as a saga:
//
//  1. backup: copy the artifact to {path}{suffix}
//  2. replace: stream the download into a temp file and rename it into place
//  3. verify: the renamed file has the downloaded size and is executable
//  4. discard: remove the backup
//
// If 2, 3 or 4 fails the backup is renamed back over the artifact, so the
// artifact is byte-identical to before and no backup remains.
//
// # Thread Safety
//
// A Controller is used by one goroutine. Cross-process exclusion comes from
// Options.Lock.
type Controller struct {
	source Source
	opts   Options
	logger *slog.Logger
}

// NewController validates opts and creates a Controller.
func NewController(source Source, opts Options) (*Controller, error) {
	if source == nil {
		return nil, errors.New("selfupdate: nil source")
	}
	if opts.ArtifactPath == "" || !filepath.IsAbs(opts.ArtifactPath) {
		return nil, fmt.Errorf("selfupdate: artifact path must be absolute, got %q", opts.ArtifactPath)
	}
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = resilience.DefaultBackupSuffix
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoOp()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer()
	}

	return &Controller{
		source: source,
		opts:   opts,
		logger: opts.Logger.With("artifact", opts.ArtifactPath),
	}, nil
}

// ArtifactPath returns the managed artifact path.
func (c *Controller) ArtifactPath() string {
	return c.opts.ArtifactPath
}

// BackupPath returns the path the backup is written to during an update.
func (c *Controller) BackupPath() string {
	return c.opts.ArtifactPath + c.opts.BackupSuffix
}

// LocalVersion returns the compiled-in version token.
func (c *Controller) LocalVersion() VersionToken {
	return c.opts.LocalVersion
}

// FetchRemoteVersion returns the remote token, or "" if it cannot be
// determined. Failures are logged, never returned.
func (c *Controller) FetchRemoteVersion(ctx context.Context) VersionToken {
	v, err := c.source.FetchRemoteVersion(ctx)
	if err != nil {
		c.logger.Warn("Could not fetch remote version", "error", err)
		return ""
	}
	return v
}

// CheckAndUpdate fetches the remote version and updates if it differs.
//
// # Outputs
//
//   - Result: Outcome is Skipped, UpToDate, Updated or Failed
//   - error: non-nil only with OutcomeFailed; callers log it and continue
//
// # Examples
//
//	res, err := ctrl.CheckAndUpdate(ctx)
//	if res.Restart != nil {
//	    return restart(res.Restart)
//	}
func (c *Controller) CheckAndUpdate(ctx context.Context) (res Result, err error) {
	ctx, finish := telemetry.StartSpan(ctx, c.opts.Tracer, telemetry.SpanUpdateCheck,
		attribute.String("local_version", c.opts.LocalVersion.String()))
	defer func() {
		c.opts.Metrics.RecordUpdateCheck(res.Outcome.String())
		finish(err)
	}()

	local := c.opts.LocalVersion
	remote := c.FetchRemoteVersion(ctx)

	res = Result{Local: local, Remote: remote, Direction: DirectionOf(local, remote)}

	switch Compare(local, remote) {
	case StatusUnknown:
		c.logger.Warn("Remote version unknown, skipping update")
		res.Outcome = OutcomeSkipped
		return res, nil

	case StatusUpToDate:
		c.logger.Debug("Up to date", "version", local)
		res.Outcome = OutcomeUpToDate
		return res, nil
	}

	c.logger.Info("Update available",
		"local", local, "remote", remote, "direction", res.Direction)

	upd, err := c.performUpdate(ctx)
	upd.Local, upd.Remote, upd.Direction = res.Local, res.Remote, res.Direction
	return upd, err
}

// PerformUpdate replaces the artifact without comparing versions.
func (c *Controller) PerformUpdate(ctx context.Context) (res Result, err error) {
	ctx, finish := telemetry.StartSpan(ctx, c.opts.Tracer, telemetry.SpanUpdatePerform)
	defer func() {
		c.opts.Metrics.RecordUpdateCheck(res.Outcome.String())
		finish(err)
	}()

	res, err = c.performUpdate(ctx)
	res.Local = c.opts.LocalVersion
	return res, err
}

func (c *Controller) performUpdate(ctx context.Context) (Result, error) {
	failed := Result{Outcome: OutcomeFailed}

	if c.opts.Lock != nil {
		if err := c.opts.Lock.Acquire(); err != nil {
			var held *process.ErrLockHeld
			if errors.As(err, &held) {
				return failed, fmt.Errorf("%w: %v", ErrUpdateInProgress, err)
			}
			return failed, fmt.Errorf("acquire update lock: %w", err)
		}
		defer func() {
			if err := c.opts.Lock.Release(); err != nil {
				c.logger.Warn("Failed to release update lock", "error", err)
			}
		}()
	}

	info, err := os.Stat(c.opts.ArtifactPath)
	if err != nil {
		return failed, fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}
	mode := info.Mode().Perm() | 0o111

	backup := resilience.NewFileBackup(c.opts.ArtifactPath, c.opts.BackupSuffix)
	var written int64

	sagaConfig := resilience.DefaultSagaConfig()
	sagaConfig.StepTimeout = c.opts.StepTimeout
	sagaConfig.Logger = c.logger
	saga := resilience.NewSaga(sagaConfig)

	saga.AddStep(resilience.SagaStep{
		Name: "backup",
		Execute: func(ctx context.Context) error {
			if err := backup.Create(); err != nil {
				return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return backup.Restore()
		},
	})

	saga.AddStep(resilience.SagaStep{
		Name: "replace",
		Execute: func(ctx context.Context) error {
			body, err := c.source.Download(ctx)
			if err != nil {
				return err
			}
			defer body.Close()

			n, err := resilience.WriteFileAtomic(c.opts.ArtifactPath, body, resilience.AtomicWriteOptions{
				Mode:           mode,
				RequireContent: true,
			})
			if err != nil {
				if errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrArtifactWrite) {
					return err
				}
				return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
			}
			written = n
			return nil
		},
	})

	saga.AddStep(resilience.SagaStep{
		Name: "verify",
		Execute: func(ctx context.Context) error {
			return verifyArtifact(c.opts.ArtifactPath, written)
		},
	})

	saga.AddStep(resilience.SagaStep{
		Name: "discard backup",
		Execute: func(ctx context.Context) error {
			return backup.Discard()
		},
	})

	c.logger.Debug("Replacing artifact", "path", c.opts.ArtifactPath, "steps", saga.StepCount())
	if err := saga.Execute(ctx); err != nil {
		for _, ce := range saga.CompensationErrors() {
			c.logger.Error("Rollback incomplete", "step", ce.StepName, "error", ce.Err,
				"backup", backup.BackupPath())
		}
		c.logger.Warn("Update failed, artifact restored", "error", err)
		return failed, err
	}

	c.logger.Info("Artifact replaced", "bytes", written)
	return Result{
		Outcome: OutcomeUpdated,
		Bytes:   written,
		Restart: &Restart{
			Path: c.opts.ArtifactPath,
			Args: append([]string(nil), c.opts.Args...),
		},
	}, nil
}

func verifyArtifact(path string, want int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}
	if info.Size() != want {
		return fmt.Errorf("%w: size %d, downloaded %d", ErrArtifactWrite, info.Size(), want)
	}
	if info.Mode().Perm()&0o100 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrArtifactWrite, path)
	}
	return nil
}
