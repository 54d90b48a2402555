// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package util provides leaf utilities for the vpnkeeper CLI.
//
// The package depends only on the standard library and is imported by the
// collaborator packages (process, system, vpn) and the update controller.
//
// # Overview
//
//   - Command Errors: CommandError carries the command line, exit code and
//     stderr of a failed collaborator call
//   - Timeout Management: minimum and default timeouts for HTTP fetches and
//     external commands
//
// # Key Types
//
// Command errors:
//
//	err := util.FromExecError(runErr, "systemctl", []string{"restart", "NetworkManager"}, stderr)
//	var cmdErr *util.CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.ExitCode)
//	}
//
// Timeouts:
//
//	cfg := util.NewTimeoutConfig()
//	client := &http.Client{Timeout: util.EnforceMinTimeout(cfg.HTTP, util.MinHTTPTimeout)}
//
// # Thread Safety
//
// CommandError is immutable after creation. TimeoutConfig is a value type.
package util
