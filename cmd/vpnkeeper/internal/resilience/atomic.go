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
	"path/filepath"
)

// ErrEmptyContent is returned by WriteFileAtomic when requireContent is set
// and the reader produced no bytes.
var ErrEmptyContent = errors.New("refusing to write empty content")

// AtomicWriteOptions configures WriteFileAtomic.
type AtomicWriteOptions struct {
	// Mode is the permission of the final file.
	Mode os.FileMode

	// RequireContent rejects a zero-length write.
	RequireContent bool
}

// WriteFileAtomic streams r into a temporary file next to path, fsyncs it and
// renames it over path.
//
// # Description
//
// Readers of path see either the old content or the complete new content,
// never a partial write. On any error the temporary file is removed and path
// is untouched.
//
// # Outputs
//
//   - int64: bytes written
//   - error: wrapped I/O error or ErrEmptyContent
func WriteFileAtomic(path string, r io.Reader, opts AtomicWriteOptions) (n int64, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err = io.Copy(tmp, r)
	if err != nil {
		return n, fmt.Errorf("failed to write temp file: %w", err)
	}
	if n == 0 && opts.RequireContent {
		return 0, ErrEmptyContent
	}
	if err = tmp.Chmod(opts.Mode); err != nil {
		return n, fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return n, fmt.Errorf("failed to rename into place: %w", err)
	}
	return n, nil
}
