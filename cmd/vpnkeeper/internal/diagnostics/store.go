// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/vpnkeeper/cmd/vpnkeeper/internal/resilience"
)

// DefaultReportPath is relative to the working directory.
const DefaultReportPath = "diagnosis.csv"

// FileStore writes the report to a single file, replacing it atomically.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore. An empty path means DefaultReportPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultReportPath
	}
	return &FileStore{path: path}
}

// Path returns the configured report path.
func (f *FileStore) Path() string {
	return f.path
}

// Store overwrites the report with rec.
func (f *FileStore) Store(ctx context.Context, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	line := rec.String() + "\n"
	if _, err := resilience.WriteFileAtomic(f.path, strings.NewReader(line), resilience.AtomicWriteOptions{
		Mode: 0o644,
	}); err != nil {
		return "", fmt.Errorf("write %s: %w", f.path, err)
	}

	abs, err := filepath.Abs(f.path)
	if err != nil {
		return f.path, nil
	}
	return abs, nil
}

var _ Store = (*FileStore)(nil)
