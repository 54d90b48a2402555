// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vpn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultIPEchoURLs are queried in order until one returns a parseable address.
var DefaultIPEchoURLs = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// ErrNoPublicIP is returned when every echo endpoint failed.
var ErrNoPublicIP = errors.New("could not determine public IP")

// maxEchoBody caps how much of an echo response is read.
const maxEchoBody = 256

// IPResolver looks up the host's public address via IP-echo services.
type IPResolver struct {
	client    *http.Client
	endpoints []string
	logger    *slog.Logger
}

// NewIPResolver creates a resolver. With no endpoints, DefaultIPEchoURLs is used.
func NewIPResolver(client *http.Client, logger *slog.Logger, endpoints ...string) *IPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(endpoints) == 0 {
		endpoints = DefaultIPEchoURLs
	}
	return &IPResolver{client: client, endpoints: endpoints, logger: logger}
}

// PublicIP returns the first valid address reported by the configured endpoints.
func (r *IPResolver) PublicIP(ctx context.Context) (netip.Addr, error) {
	for _, url := range r.endpoints {
		addr, err := r.query(ctx, url)
		if err != nil {
			r.logger.Debug("IP echo endpoint failed", "url", url, "error", err)
			if ctx.Err() != nil {
				return netip.Addr{}, ctx.Err()
			}
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, ErrNoPublicIP
}

func (r *IPResolver) query(ctx context.Context, url string) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return netip.Addr{}, err
	}
	return netip.ParseAddr(strings.TrimSpace(string(body)))
}
