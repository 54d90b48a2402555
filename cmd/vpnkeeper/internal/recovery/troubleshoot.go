// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"context"
)

// Response is the operator's answer to a yes/no question.
type Response int

const (
	// ResponseUnknown covers unparseable answers and non-interactive input.
	ResponseUnknown Response = iota
	ResponseYes
	ResponseNo
)

func (r Response) String() string {
	switch r {
	case ResponseYes:
		return "yes"
	case ResponseNo:
		return "no"
	default:
		return "unknown"
	}
}

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, question string) (Response, error)
}

// TroubleshootOutcome is the result of Troubleshoot.
type TroubleshootOutcome int

const (
	// TroubleshootDeclined means nothing was run.
	TroubleshootDeclined TroubleshootOutcome = iota
	// TroubleshootRecovered means the reconnect after the pass succeeded.
	TroubleshootRecovered
	// TroubleshootStillFailing means the pass ran but the reconnect failed.
	TroubleshootStillFailing
)

func (o TroubleshootOutcome) String() string {
	switch o {
	case TroubleshootRecovered:
		return "recovered"
	case TroubleshootStillFailing:
		return "still_failing"
	default:
		return "declined"
	}
}

// TroubleshootQuestion is asked before the remediation pass.
const TroubleshootQuestion = "Connection failed. Run the troubleshooting steps now?"

// ManualHint is shown when the operator declines.
const ManualHint = "Run 'vpnkeeper bruteforce' to retry automatically, or restart the VPN service with 'sudo systemctl restart nordvpnd'."

// Troubleshoot asks for confirmation, then runs the remediation set once and
// makes one reconnect attempt. There is no loop and no deadline.
//
// # Outputs
//
//   - TroubleshootOutcome: Declined unless the answer was ResponseYes
//   - error: the reconnect error when StillFailing
func (m *Machine) Troubleshoot(ctx context.Context, prompter Prompter) (TroubleshootOutcome, error) {
	resp, err := prompter.Confirm(ctx, TroubleshootQuestion)
	if err != nil {
		m.opts.Logger.Warn("Troubleshoot prompt failed", "error", err)
		return TroubleshootDeclined, nil
	}
	if resp != ResponseYes {
		m.opts.Logger.Info("Troubleshooting declined", "response", resp.String())
		return TroubleshootDeclined, nil
	}

	if err := m.attempt(ctx, 1); err != nil {
		m.opts.Logger.Warn("Still failing after troubleshooting", "error", err)
		return TroubleshootStillFailing, err
	}
	m.opts.Logger.Info("Recovered after troubleshooting")
	return TroubleshootRecovered, nil
}
