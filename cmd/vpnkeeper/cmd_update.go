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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/selfupdate"
	"github.com/AleutianAI/vpnkeeper/pkg/ux"
)

func runUpdate(cmd *cobra.Command, args []string) error {
	// The re-exec after a successful update lands here again with the same
	// argv. The artifact already is the update, so only confirm it.
	if alreadyRestarted() {
		ux.Success(fmt.Sprintf("Now running vpnkeeper %s from %s", keeper.updater.LocalVersion(), keeper.updater.ArtifactPath()))
		return nil
	}

	res, err := keeper.updater.PerformUpdate(cmd.Context())
	if err != nil {
		return fmt.Errorf("update failed, %s left unchanged: %w", keeper.updater.ArtifactPath(), err)
	}
	return keeper.reportUpdate(res)
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	res, err := keeper.updater.CheckAndUpdate(cmd.Context())
	if err != nil {
		return fmt.Errorf("update failed, %s left unchanged: %w", keeper.updater.ArtifactPath(), err)
	}
	return keeper.reportUpdate(res)
}

// updateGate runs CheckAndUpdate before a state-changing command. Update
// failures are reported and the command continues on the current version.
// A successful update returns a *restartRequest so the command reruns under
// the new artifact.
func (a *app) updateGate(ctx context.Context, c Command) error {
	if !c.requiresUpdateGate() {
		return nil
	}
	if alreadyRestarted() {
		a.logger.Debug("Skipping update check after restart", "command", c.String())
		return nil
	}

	res, err := a.updater.CheckAndUpdate(ctx)
	if err != nil {
		ux.Warning(fmt.Sprintf("Self-update failed, continuing with %s: %v", a.updater.LocalVersion(), err))
		return nil
	}
	return a.reportUpdate(res)
}

// reportUpdate prints res and turns a Restart effect into a *restartRequest.
func (a *app) reportUpdate(res selfupdate.Result) error {
	switch res.Outcome {
	case selfupdate.OutcomeSkipped:
		ux.Warning("Could not determine the latest version, skipping update")
	case selfupdate.OutcomeUpToDate:
		ux.Success(fmt.Sprintf("vpnkeeper %s is up to date", res.Local))
	case selfupdate.OutcomeUpdated:
		if res.Remote.Empty() {
			ux.Success(fmt.Sprintf("Updated %s (%d bytes)", a.updater.ArtifactPath(), res.Bytes))
		} else {
			ux.Success(fmt.Sprintf("Updated %s → %s (%s)", res.Local, res.Remote, res.Direction))
		}
	}

	if res.Restart == nil {
		return nil
	}
	if alreadyRestarted() {
		ux.Warning("Already restarted once in this invocation, not restarting again")
		return nil
	}
	ux.Info("Restarting with the updated version")
	return &restartRequest{restart: res.Restart}
}
