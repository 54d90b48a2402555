// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/util"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager handles external process operations.
//
// This interface abstracts every interaction with collaborator binaries so
// the remediation set and the VPN client wrapper can be exercised without
// touching the host.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context; callers bound each command with a
// timeout derived from util.TimeoutConfig.
type ProcessManager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Description
	//
	// Executes the command and waits for completion. Failures are returned as
	// *util.CommandError carrying the exit code and trimmed stderr.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Captured stdout
	//   - error: *util.CommandError if the command fails or is cancelled
	//
	// # Examples
	//
	//   out, err := pm.Run(ctx, "journalctl", "-u", "nordvpnd", "-n", "20", "--no-pager")
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInteractive executes a command attached to the current terminal.
	//
	// # Description
	//
	// Used for commands that need the operator, such as the VPN client's
	// login flow which prints a URL and waits for a browser callback.
	// Output is not captured.
	//
	// # Outputs
	//
	//   - error: *util.CommandError if the command fails or is cancelled
	RunInteractive(ctx context.Context, name string, args ...string) error

	// IsRunning checks if a process matching the pattern exists.
	//
	// # Description
	//
	// Uses pgrep -f. A pgrep exit code of 1 means "no match" and is not an
	// error.
	//
	// # Outputs
	//
	//   - bool: True if at least one matching process is running
	//   - int: PID of the first match (0 if not found)
	//   - error: Non-nil if process detection itself failed
	IsRunning(ctx context.Context, pattern string) (bool, int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager implements ProcessManager using os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a ProcessManager that executes real processes.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command synchronously and returns its output.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), util.FromExecError(err, name, args, stderr.String())
	}

	return stdout.Bytes(), nil
}

// RunInteractive executes a command with the parent's stdio attached.
func (pm *DefaultProcessManager) RunInteractive(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return util.FromExecError(err, name, args, "")
	}
	return nil
}

// IsRunning checks if a process matching the pattern exists.
func (pm *DefaultProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	cmd := exec.CommandContext(ctx, "pgrep", "-f", pattern)
	output, err := cmd.Output()

	if err != nil {
		// pgrep returns exit code 1 when no processes found
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("pgrep failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 0 && lines[0] != "" {
		pid, err := strconv.Atoi(lines[0])
		if err != nil {
			return true, 0, nil
		}
		return true, pid, nil
	}

	return false, 0, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it will panic.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "nordvpn" && args[0] == "status" {
//	            return []byte("Status: Connected"), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockProcessManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInteractiveFunc is called when RunInteractive is invoked
	RunInteractiveFunc func(ctx context.Context, name string, args ...string) error

	// IsRunningFunc is called when IsRunning is invoked
	IsRunningFunc func(ctx context.Context, pattern string) (bool, int, error)

	// Calls records all method invocations for verification
	Calls []ProcessManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ProcessManagerCall records a single method invocation.
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
}

// CommandLine renders the call as "name arg1 arg2".
func (c ProcessManagerCall) CommandLine() string {
	return util.CommandLine(c.Name, c.Args...)
}

func (m *MockProcessManager) record(method, name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ProcessManagerCall{
		Method: method,
		Name:   name,
		Args:   append([]string(nil), args...),
	})
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record("Run", name, args)
	if m.RunFunc == nil {
		panic("MockProcessManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// RunInteractive delegates to RunInteractiveFunc and records the call.
func (m *MockProcessManager) RunInteractive(ctx context.Context, name string, args ...string) error {
	m.record("RunInteractive", name, args)
	if m.RunInteractiveFunc == nil {
		panic("MockProcessManager.RunInteractiveFunc not set")
	}
	return m.RunInteractiveFunc(ctx, name, args...)
}

// IsRunning delegates to IsRunningFunc and records the call.
func (m *MockProcessManager) IsRunning(ctx context.Context, pattern string) (bool, int, error) {
	m.record("IsRunning", pattern, nil)
	if m.IsRunningFunc == nil {
		panic("MockProcessManager.IsRunningFunc not set")
	}
	return m.IsRunningFunc(ctx, pattern)
}

// Reset clears all recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// CommandLines returns the recorded calls rendered as command lines.
func (m *MockProcessManager) CommandLines() []string {
	calls := m.GetCalls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.CommandLine()
	}
	return lines
}

// Compile-time interface compliance check.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
