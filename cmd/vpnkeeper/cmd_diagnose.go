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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vpnkeeper/pkg/ux"
)

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := keeper.updateGate(ctx, CommandDiagnose); err != nil {
		return err
	}

	rec, location, err := keeper.sampler.Diagnose(ctx)
	ux.Box("Diagnosis",
		fmt.Sprintf("Likely issue: %s", rec.Issue),
		fmt.Sprintf("Confidence:   %d%%", rec.Confidence),
	)
	if err != nil {
		return err
	}
	ux.Muted("Saved to " + location)
	return nil
}
