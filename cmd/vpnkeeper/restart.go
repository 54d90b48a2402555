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
	"os"

	"golang.org/x/sys/unix"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/selfupdate"
)

// RestartedEnv is set in the environment of a process started by execRestart.
// A restarted process never restarts again, so a release whose compiled-in
// version disagrees with its VERSION file cannot loop.
const RestartedEnv = "VPNKEEPER_RESTARTED"

// execFunc replaces the current process image. Swapped in tests.
var execFunc = unix.Exec

// restartRequest carries a Restart effect from a command up to main, which
// tears the app down before replacing the process.
type restartRequest struct {
	restart *selfupdate.Restart
}

func (r *restartRequest) Error() string {
	return "restart requested: " + r.restart.Path
}

// alreadyRestarted reports whether this process was started by execRestart.
func alreadyRestarted() bool {
	return os.Getenv(RestartedEnv) != ""
}

// execRestart re-invokes the updated artifact with the original arguments.
// It only returns on failure.
func execRestart(r *selfupdate.Restart) error {
	argv := append([]string{r.Path}, r.Args...)
	env := append(os.Environ(), RestartedEnv+"=1")
	if err := execFunc(r.Path, argv, env); err != nil {
		return fmt.Errorf("re-exec %s: %w", r.Path, err)
	}
	return nil
}
