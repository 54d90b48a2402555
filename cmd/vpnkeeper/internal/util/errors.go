// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps a failed collaborator command with its stderr context.
//
// # Description
//
// Every external command vpnkeeper runs (systemctl, iptables, nft, the VPN
// client, journalctl, ping) reports failure through this type. Callers in the
// remediation set log it as a warning and continue; nothing in the core
// treats a CommandError as fatal.
//
// # Thread Safety
//
// CommandError is immutable after creation and safe for concurrent reads.
//
// # Example
//
//	err := NewCommandError("systemctl restart nordvpnd", 5, "Unit not found", originalErr)
//	fmt.Println(err.Error()) // "systemctl restart nordvpnd (exit 5): Unit not found"
//
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.ExitCode) // 5
//	}
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr contains the standard error output (trimmed).
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error returns "<command> (exit N): <stderr or wrapped error>".
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// HasStderr reports whether stderr output was captured.
func (e *CommandError) HasStderr() bool {
	return e.Stderr != ""
}

var _ error = (*CommandError)(nil)

// NewCommandError creates a CommandError with trimmed stderr.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// FromExecError converts an os/exec failure into a CommandError.
//
// # Description
//
// Extracts the exit code from *exec.ExitError when present; any other error
// (binary not found, context cancelled) gets exit code -1. Returns nil when
// err is nil and returns err unchanged when it already is a CommandError.
//
// # Inputs
//
//   - err: Error returned by exec.Cmd.Run
//   - name: Executable name
//   - args: Arguments passed to the executable
//   - stderr: Captured standard error output
//
// # Outputs
//
//   - *CommandError: Wrapped failure, or nil
func FromExecError(err error, name string, args []string, stderr string) *CommandError {
	if err == nil {
		return nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return NewCommandError(CommandLine(name, args...), exitCode, stderr, err)
}

// CommandLine joins a command and its arguments for display.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// ExtractStderr walks the error chain and returns the first captured stderr.
func ExtractStderr(err error) string {
	var cmdErr *CommandError
	for err != nil {
		if errors.As(err, &cmdErr) && cmdErr.HasStderr() {
			return cmdErr.Stderr
		}
		err = errors.Unwrap(err)
	}
	return ""
}
