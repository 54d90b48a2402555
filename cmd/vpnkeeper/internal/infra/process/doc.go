// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package process provides abstractions for external process execution and
inter-process synchronization.

# Overview

  - ProcessManager: runs collaborator commands (systemctl, iptables, nft,
    journalctl, ping, the VPN client) behind an interface so every caller
    can be tested with MockProcessManager
  - ProcessLocker: flock(2) based lock that keeps two vpnkeeper processes
    from replacing the executable at the same time

# ProcessManager

	pm := process.NewDefaultProcessManager()
	out, err := pm.Run(ctx, "systemctl", "is-active", "nordvpnd")
	if err != nil {
	    var cmdErr *util.CommandError
	    if errors.As(err, &cmdErr) {
	        log.Printf("exit %d: %s", cmdErr.ExitCode, cmdErr.Stderr)
	    }
	}

For testing, use MockProcessManager:

	mock := &process.MockProcessManager{
	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
	        return []byte("Status: Connected"), nil
	    },
	}

# ProcessLocker

	lock := process.NewProcessLock(process.ProcessLockConfig{LockName: "vpnkeeper-update"})
	if err := lock.Acquire(); err != nil {
	    return err
	}
	defer lock.Release()

# Thread Safety

  - ProcessManager implementations are safe for concurrent use
  - ProcessLocker is NOT safe for concurrent use from multiple goroutines

# Limitations

  - ProcessLocker uses advisory locks; other programs can ignore them
*/
package process
