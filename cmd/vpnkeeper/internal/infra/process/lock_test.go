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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultProcessLockConfig(t *testing.T) {
	config := DefaultProcessLockConfig()

	if config.LockDir == "" {
		t.Error("LockDir should not be empty")
	}
	if config.LockName != "vpnkeeper" {
		t.Errorf("LockName = %q, want vpnkeeper", config.LockName)
	}
}

func TestNewProcessLock_Paths(t *testing.T) {
	tmpDir := t.TempDir()

	lock := NewProcessLock(ProcessLockConfig{LockDir: tmpDir, LockName: "update"})

	if got, want := lock.LockPath(), filepath.Join(tmpDir, "update.lock"); got != want {
		t.Errorf("LockPath() = %q, want %q", got, want)
	}
	if got, want := lock.PIDPath(), filepath.Join(tmpDir, "update.pid"); got != want {
		t.Errorf("PIDPath() = %q, want %q", got, want)
	}
}

func TestNewProcessLock_EmptyNameDefaults(t *testing.T) {
	lock := NewProcessLock(ProcessLockConfig{LockDir: t.TempDir()})

	if !strings.HasSuffix(lock.LockPath(), "vpnkeeper.lock") {
		t.Errorf("LockPath() = %q, want vpnkeeper.lock suffix", lock.LockPath())
	}
}

func TestProcessLock_AcquireRelease(t *testing.T) {
	lock := NewProcessLock(ProcessLockConfig{LockDir: t.TempDir(), LockName: "test"})

	if lock.IsHeld() {
		t.Error("Lock should not be held initially")
	}

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if !lock.IsHeld() {
		t.Error("Lock should be held after Acquire()")
	}
	if pid := lock.HolderPID(); pid != os.Getpid() {
		t.Errorf("HolderPID() = %d, want %d", pid, os.Getpid())
	}

	// Idempotent
	if err := lock.Acquire(); err != nil {
		t.Errorf("Double Acquire() should succeed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if lock.IsHeld() {
		t.Error("Lock should not be held after Release()")
	}
	if _, err := os.Stat(lock.PIDPath()); !os.IsNotExist(err) {
		t.Error("PID file should be removed after Release()")
	}

	if err := lock.Release(); err != nil {
		t.Errorf("Double Release() should succeed: %v", err)
	}
}

func TestProcessLock_BlocksSecondInstance(t *testing.T) {
	tmpDir := t.TempDir()

	lock1 := NewProcessLock(ProcessLockConfig{LockDir: tmpDir, LockName: "test"})
	lock2 := NewProcessLock(ProcessLockConfig{LockDir: tmpDir, LockName: "test"})

	if err := lock1.Acquire(); err != nil {
		t.Fatalf("First Acquire() failed: %v", err)
	}
	defer lock1.Release()

	err := lock2.Acquire()
	if err == nil {
		lock2.Release()
		t.Fatal("Second Acquire() should fail when lock is held")
	}

	var held *ErrLockHeld
	if !errors.As(err, &held) {
		t.Fatalf("error = %T, want *ErrLockHeld", err)
	}
	if held.HolderPID != os.Getpid() {
		t.Errorf("HolderPID = %d, want %d", held.HolderPID, os.Getpid())
	}
	if !strings.Contains(err.Error(), "another vpnkeeper instance") {
		t.Errorf("Error should mention another instance, got: %v", err)
	}
}

func TestProcessLock_ReleaseMakesAvailable(t *testing.T) {
	tmpDir := t.TempDir()

	lock1 := NewProcessLock(ProcessLockConfig{LockDir: tmpDir, LockName: "test"})
	lock2 := NewProcessLock(ProcessLockConfig{LockDir: tmpDir, LockName: "test"})

	if err := lock1.Acquire(); err != nil {
		t.Fatalf("First Acquire() failed: %v", err)
	}
	if err := lock1.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	if err := lock2.Acquire(); err != nil {
		t.Fatalf("Second Acquire() should succeed after release: %v", err)
	}
	defer lock2.Release()
}

func TestProcessLock_HolderPID_InvalidFile(t *testing.T) {
	lock := NewProcessLock(ProcessLockConfig{LockDir: t.TempDir(), LockName: "test"})

	if pid := lock.HolderPID(); pid != 0 {
		t.Errorf("HolderPID() without lock = %d, want 0", pid)
	}

	if err := os.WriteFile(lock.PIDPath(), []byte("not-a-number"), 0644); err != nil {
		t.Fatalf("Failed to write invalid PID file: %v", err)
	}
	if pid := lock.HolderPID(); pid != 0 {
		t.Errorf("HolderPID() with invalid file = %d, want 0", pid)
	}
}

func TestProcessLock_AcquireMissingDir(t *testing.T) {
	lock := NewProcessLock(ProcessLockConfig{
		LockDir:  filepath.Join(t.TempDir(), "missing"),
		LockName: "test",
	})

	err := lock.Acquire()
	if err == nil {
		t.Fatal("Acquire() should fail when LockDir does not exist")
	}
	var held *ErrLockHeld
	if errors.As(err, &held) {
		t.Error("missing dir should not be reported as contention")
	}
}

func TestErrLockHeld_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ErrLockHeld
		want string
	}{
		{
			name: "with PID",
			err:  ErrLockHeld{HolderPID: 12345, LockPath: "/tmp/test.lock"},
			want: "another vpnkeeper instance is running (PID 12345)",
		},
		{
			name: "without PID",
			err:  ErrLockHeld{LockPath: "/tmp/test.lock"},
			want: "another vpnkeeper instance is running (check: lsof /tmp/test.lock)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
