// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNetworkUnavailable wraps every transport or HTTP status failure from a
// Source.
var ErrNetworkUnavailable = errors.New("network unavailable")

// ErrNoVersion is returned when the fetched text has no version declaration.
var ErrNoVersion = errors.New("no version declaration found")

// ErrArtifactTooLarge is returned when a download exceeds the size limit.
// It wraps ErrArtifactWrite so the update rolls back.
var ErrArtifactTooLarge = fmt.Errorf("%w: artifact exceeds size limit", ErrArtifactWrite)

const (
	// maxVersionScanBytes bounds how much of the resource is read when only
	// the version line is needed.
	maxVersionScanBytes = 1 << 20

	// MaxArtifactBytes bounds a download.
	MaxArtifactBytes = 256 << 20
)

// Source serves the canonical artifact and its version token.
type Source interface {
	// FetchRemoteVersion returns the remote VersionToken.
	FetchRemoteVersion(ctx context.Context) (VersionToken, error)

	// Download opens the full remote artifact. Read errors from the returned
	// body wrap ErrNetworkUnavailable, or ErrArtifactWrite when the artifact
	// cannot be accepted.
	Download(ctx context.Context) (io.ReadCloser, error)
}

// HTTPSource fetches the artifact with a single GET.
//
// The same URL serves both purposes: FetchRemoteVersion scans it for the
// version line and Download streams it whole. VersionURL, when set, is
// scanned instead, for artifacts (such as compiled binaries) that carry no
// readable declaration line.
type HTTPSource struct {
	Client     *http.Client
	URL        string
	VersionURL string

	// MaxBytes bounds Download. Zero means MaxArtifactBytes.
	MaxBytes int64
}

// NewHTTPSource creates an HTTPSource. A nil client uses http.DefaultClient.
func NewHTTPSource(client *http.Client, url, versionURL string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{Client: client, URL: url, VersionURL: versionURL}
}

// FetchRemoteVersion implements Source.
func (s *HTTPSource) FetchRemoteVersion(ctx context.Context) (VersionToken, error) {
	url := s.URL
	if s.VersionURL != "" {
		url = s.VersionURL
	}

	resp, err := s.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(&networkBody{Reader: io.LimitReader(resp.Body, maxVersionScanBytes), closer: resp.Body})
	if err != nil {
		return "", err
	}

	v := ExtractVersion(string(text))
	if v.Empty() {
		return "", fmt.Errorf("%w at %s", ErrNoVersion, url)
	}
	return v, nil
}

// Download implements Source. A body longer than MaxBytes fails with
// ErrArtifactTooLarge instead of being cut short.
func (s *HTTPSource) Download(ctx context.Context) (io.ReadCloser, error) {
	limit := s.MaxBytes
	if limit <= 0 {
		limit = MaxArtifactBytes
	}

	resp, err := s.get(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > limit {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrArtifactTooLarge, s.URL, resp.ContentLength, limit)
	}

	return &networkBody{
		Reader: io.LimitReader(resp.Body, limit+1),
		closer: resp.Body,
		limit:  limit,
	}, nil
}

func (s *HTTPSource) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s returned %s", ErrNetworkUnavailable, url, resp.Status)
	}

	return resp, nil
}

// networkBody tags read failures as ErrNetworkUnavailable so the update
// controller can tell a dropped connection from a full disk. With a
// positive limit, reading past it fails with ErrArtifactTooLarge.
type networkBody struct {
	io.Reader
	closer io.Closer
	limit  int64
	read   int64
}

func (b *networkBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	b.read += int64(n)
	if b.limit > 0 && b.read > b.limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrArtifactTooLarge, b.limit)
	}
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return n, err
}

func (b *networkBody) Close() error {
	return b.closer.Close()
}

var _ Source = (*HTTPSource)(nil)
