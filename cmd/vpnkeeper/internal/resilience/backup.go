// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resilience

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultBackupSuffix is appended to the artifact path to form the backup path.
const DefaultBackupSuffix = ".bak"

// FileBackup manages the single backup copy of one file.
//
// # Description
//
// Unlike a rotating backup scheme there is at most one backup per file,
// at {Path}{Suffix}. Create copies, Restore renames the copy back over the
// original, Discard deletes it. After Restore or Discard no backup remains.
//
// # Example
//
//	b := NewFileBackup("/usr/local/bin/vpnkeeper", "")
//	if err := b.Create(); err != nil {
//	    return err
//	}
//	defer b.Discard()
type FileBackup struct {
	path   string
	backup string
}

// NewFileBackup creates a FileBackup for path. An empty suffix uses DefaultBackupSuffix.
func NewFileBackup(path, suffix string) *FileBackup {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	return &FileBackup{path: path, backup: path + suffix}
}

// Path returns the protected file path.
func (b *FileBackup) Path() string {
	return b.path
}

// BackupPath returns the backup file path.
func (b *FileBackup) BackupPath() string {
	return b.backup
}

// Exists reports whether the backup file is present.
func (b *FileBackup) Exists() bool {
	_, err := os.Lstat(b.backup)
	return err == nil
}

// Create copies the file to the backup path and fsyncs it.
//
// A failed copy removes the partial backup. The original is never modified.
func (b *FileBackup) Create() (err error) {
	src, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", b.path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", b.path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", b.path)
	}

	dst, err := os.OpenFile(b.backup, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	defer func() {
		if err != nil {
			dst.Close()
			os.Remove(b.backup)
		}
	}()

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err = dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync backup: %w", err)
	}
	if err = dst.Close(); err != nil {
		return fmt.Errorf("failed to close backup: %w", err)
	}
	return nil
}

// Restore moves the backup back over the original path.
func (b *FileBackup) Restore() error {
	if err := os.Rename(b.backup, b.path); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// Discard removes the backup. A missing backup is not an error.
func (b *FileBackup) Discard() error {
	if err := os.Remove(b.backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}
