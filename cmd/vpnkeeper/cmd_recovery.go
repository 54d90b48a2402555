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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/recovery"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/remediation"
	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/vpn"
	"github.com/AleutianAI/vpnkeeper/pkg/ux"
)

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := keeper.updateGate(ctx, CommandReset); err != nil {
		return err
	}

	ux.Title("Resetting network state")
	set := keeper.newSet(remediation.NetworkReset(keeper.host, keeper.client, keeper.remediationOptions()))
	report := set.Run(ctx)

	failed := len(report.Failed())
	ux.Summary(len(report.Results)-failed, failed, len(report.Results))

	service := keeper.cfg.VPN.Service
	_ = ux.WithSpinner("Checking "+service+" is active", func() error {
		if !keeper.host.ServiceActive(ctx, service) {
			return fmt.Errorf("%s is not active", service)
		}
		return nil
	})
	return nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := keeper.updateGate(ctx, CommandConnect); err != nil {
		return err
	}

	spin := ux.NewSpinner("Connecting")
	spin.Start()
	err := keeper.client.Connect(ctx)
	if err == nil {
		spin.StopWithSuccess("Connected")
		printReport(keeper.reporter.Collect(ctx))
		return nil
	}
	spin.StopWithWarning(fmt.Sprintf("Connection failed: %v", err))

	machine, err := keeper.newMachine(recovery.Options{})
	if err != nil {
		return err
	}

	outcome, err := machine.Troubleshoot(ctx, confirmPrompter{})
	switch outcome {
	case recovery.TroubleshootRecovered:
		ux.Success("Connected after troubleshooting")
		printReport(keeper.reporter.Collect(ctx))
	case recovery.TroubleshootStillFailing:
		ux.WarningBox("Still not connected", err.Error()+"\n\n"+recovery.ManualHint)
	default:
		ux.Info(recovery.ManualHint)
	}
	return nil
}

func runBruteforce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := keeper.updateGate(ctx, CommandBruteforce); err != nil {
		return err
	}

	duration := keeper.cfg.Recovery.Duration
	ux.Title(fmt.Sprintf("Reconnecting for up to %s", duration))

	machine, err := keeper.newMachine(recovery.Options{
		Clock: progressClock{Clock: recovery.RealClock{}},
		OnRetry: func(attempt int, err error, remaining time.Duration) {
			ux.Warning(fmt.Sprintf("Attempt %d failed: %v (%s left)", attempt, err, remaining.Round(time.Second)))
		},
	})
	if err != nil {
		return err
	}

	outcome, sess := machine.Run(ctx, duration)
	if outcome == recovery.OutcomeSucceeded {
		ux.Success(fmt.Sprintf("Connected after %d attempt(s)", sess.Attempts))
		if sess.Report != nil {
			printReport(*sess.Report)
		}
		return nil
	}

	msg := fmt.Sprintf("Could not reconnect within %s (%d attempt(s))", duration, sess.Attempts)
	if sess.LastErr != nil {
		msg += ": " + sess.LastErr.Error()
	}
	ux.Error(msg)
	return nil
}

func printReport(rep vpn.Report) {
	ux.Box("VPN status", rep.Lines()...)
}

// confirmPrompter asks through ux.Confirm.
type confirmPrompter struct{}

func (confirmPrompter) Confirm(ctx context.Context, question string) (recovery.Response, error) {
	if err := ctx.Err(); err != nil {
		return recovery.ResponseUnknown, err
	}
	ok, err := ux.Confirm(question)
	if err != nil {
		if errors.Is(err, ux.ErrNotInteractive) {
			ux.Muted("Not an interactive terminal, skipping troubleshooting")
		}
		return recovery.ResponseUnknown, err
	}
	if ok {
		return recovery.ResponseYes, nil
	}
	return recovery.ResponseNo, nil
}

// progressClock shows a spinner while the recovery loop waits.
type progressClock struct {
	recovery.Clock
}

func (c progressClock) Sleep(ctx context.Context, d time.Duration) error {
	if !ux.ShouldShowProgress() {
		return c.Clock.Sleep(ctx, d)
	}
	spin := ux.NewSpinner(fmt.Sprintf("Waiting %s before the next attempt", d)).WithType(ux.SpinnerCompass)
	spin.Start()
	defer spin.Stop()
	return c.Clock.Sleep(ctx, d)
}

var (
	_ recovery.Prompter = confirmPrompter{}
	_ recovery.Clock    = progressClock{}
)
