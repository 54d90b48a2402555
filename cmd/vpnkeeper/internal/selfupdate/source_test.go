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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_FetchRemoteVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#!/bin/bash\nVERSION=\"1.0.6\"\necho hi\n")
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), srv.URL, "")
	v, err := src.FetchRemoteVersion(context.Background())

	require.NoError(t, err)
	assert.Equal(t, VersionToken("1.0.6"), v)
}

func TestHTTPSource_VersionURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vpnkeeper", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x7f, 'E', 'L', 'F'})
	})
	mux.HandleFunc("/VERSION", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "VERSION=1.2.0\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewHTTPSource(nil, srv.URL+"/vpnkeeper", srv.URL+"/VERSION")
	v, err := src.FetchRemoteVersion(context.Background())

	require.NoError(t, err)
	assert.Equal(t, VersionToken("1.2.0"), v)
}

func TestHTTPSource_NoDeclaration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>captive portal</html>")
	}))
	defer srv.Close()

	_, err := NewHTTPSource(nil, srv.URL, "").FetchRemoteVersion(context.Background())
	assert.ErrorIs(t, err, ErrNoVersion)
}

func TestHTTPSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(nil, srv.URL, "")

	_, err := src.FetchRemoteVersion(context.Background())
	assert.ErrorIs(t, err, ErrNetworkUnavailable)

	_, err = src.Download(context.Background())
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource(nil, url, "").FetchRemoteVersion(context.Background())
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestHTTPSource_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	body, err := NewHTTPSource(nil, srv.URL, "").Download(context.Background())
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestHTTPSource_TruncatedBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = io.WriteString(w, "short")
	}))
	defer srv.Close()

	body, err := NewHTTPSource(nil, srv.URL, "").Download(context.Background())
	require.NoError(t, err)
	defer body.Close()

	_, err = io.ReadAll(body)
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestHTTPSource_DownloadOverLimit(t *testing.T) {
	payload := strings.Repeat("x", 64)
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "declared length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, payload)
			},
		},
		{
			name: "chunked",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, payload[:8])
				w.(http.Flusher).Flush()
				_, _ = io.WriteString(w, payload[8:])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			src := NewHTTPSource(nil, srv.URL, "")
			src.MaxBytes = 32

			body, err := src.Download(context.Background())
			if err == nil {
				defer body.Close()
				_, err = io.ReadAll(body)
			}
			assert.ErrorIs(t, err, ErrArtifactTooLarge)
			assert.ErrorIs(t, err, ErrArtifactWrite)
			assert.NotErrorIs(t, err, ErrNetworkUnavailable)
		})
	}
}

func TestHTTPSource_DownloadAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 32))
	}))
	defer srv.Close()

	src := NewHTTPSource(nil, srv.URL, "")
	src.MaxBytes = 32

	body, err := src.Download(context.Background())
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Len(t, data, 32)
}
