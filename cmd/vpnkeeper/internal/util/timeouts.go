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

import "time"

// =============================================================================
// Constants
// =============================================================================

// Timeout constants define minimum and default values for external calls.
//
// Every HTTP fetch and collaborator command runs under one of these so a
// misconfigured zero timeout can never hang the recovery loop.
const (
	// MinHTTPTimeout is the absolute minimum for any HTTP operation.
	MinHTTPTimeout = 1 * time.Second

	// MinProcessTimeout is the absolute minimum for collaborator commands.
	MinProcessTimeout = 2 * time.Second

	// DefaultHTTPTimeout covers the update fetch and the IP-echo lookup.
	DefaultHTTPTimeout = 20 * time.Second

	// DefaultProcessTimeout covers a single systemctl/iptables/VPN client call.
	DefaultProcessTimeout = 45 * time.Second

	// DefaultLoginTimeout is longer because the VPN client's login may wait
	// for a browser callback.
	DefaultLoginTimeout = 3 * time.Minute
)

// =============================================================================
// TimeoutConfig
// =============================================================================

// TimeoutValidator returns a copy of a timeout configuration with minimums
// enforced.
type TimeoutValidator interface {
	Validated() TimeoutConfig
}

// TimeoutConfig groups the timeouts used by collaborators.
type TimeoutConfig struct {
	// HTTP is the timeout for HTTP operations.
	HTTP time.Duration

	// Process is the timeout for one external command.
	Process time.Duration

	// Login is the timeout for the VPN client's interactive login.
	Login time.Duration
}

// Validated returns a copy where every value is at least its minimum.
//
// # Description
//
// The receiver is not modified. Zero or negative values are raised to the
// minimum rather than to the default, matching EnforceMinTimeout.
//
// # Outputs
//
//   - TimeoutConfig: A validated copy with enforced minimums
func (c *TimeoutConfig) Validated() TimeoutConfig {
	return TimeoutConfig{
		HTTP:    EnforceMinTimeout(c.HTTP, MinHTTPTimeout),
		Process: EnforceMinTimeout(c.Process, MinProcessTimeout),
		Login:   EnforceMinTimeout(c.Login, MinProcessTimeout),
	}
}

var _ TimeoutValidator = (*TimeoutConfig)(nil)

// NewTimeoutConfig returns the default timeouts.
func NewTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		HTTP:    DefaultHTTPTimeout,
		Process: DefaultProcessTimeout,
		Login:   DefaultLoginTimeout,
	}
}

// EnforceMinTimeout returns requested, or minimum when requested is below it.
//
// # Examples
//
//	EnforceMinTimeout(0, MinHTTPTimeout)              // 1s
//	EnforceMinTimeout(10*time.Second, MinHTTPTimeout) // 10s
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns requested, or defaultVal when requested is
// zero or negative.
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}
