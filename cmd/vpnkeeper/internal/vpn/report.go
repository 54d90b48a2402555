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
	"fmt"
	"net/netip"
)

// RouteSource provides the default route description.
type RouteSource interface {
	DefaultRoute(ctx context.Context) (string, error)
}

// StatusSource provides the VPN client's connection status.
type StatusSource interface {
	Status(ctx context.Context) (Status, error)
	DaemonRunning(ctx context.Context) (bool, int, error)
}

// AddressSource provides the public address.
type AddressSource interface {
	PublicIP(ctx context.Context) (netip.Addr, error)
}

// Report is the status shown after a successful connect.
//
// Every field is best-effort; a failed lookup leaves the value empty and
// records the error in the matching *Err field.
type Report struct {
	PublicIP      string
	PublicIPErr   error
	Route         string
	RouteErr      error
	Status        Status
	StatusErr     error
	DaemonRunning bool
	DaemonPID     int
}

// Reporter collects a Report from its three sources.
type Reporter struct {
	ip     AddressSource
	route  RouteSource
	status StatusSource
}

// NewReporter creates a Reporter.
func NewReporter(ip AddressSource, route RouteSource, status StatusSource) *Reporter {
	return &Reporter{ip: ip, route: route, status: status}
}

// Collect gathers the report. It never fails as a whole.
func (r *Reporter) Collect(ctx context.Context) Report {
	var rep Report

	if addr, err := r.ip.PublicIP(ctx); err != nil {
		rep.PublicIPErr = err
	} else {
		rep.PublicIP = addr.String()
	}

	rep.Route, rep.RouteErr = r.route.DefaultRoute(ctx)
	rep.Status, rep.StatusErr = r.status.Status(ctx)

	// pgrep failure just leaves the daemon shown as not running.
	rep.DaemonRunning, rep.DaemonPID, _ = r.status.DaemonRunning(ctx)

	return rep
}

// Lines renders the report as "label: value" lines for the console.
func (rep Report) Lines() []string {
	return []string{
		"Public IP: " + valueOr(rep.PublicIP, rep.PublicIPErr),
		"Route:     " + valueOr(rep.Route, rep.RouteErr),
		"VPN:       " + valueOr(rep.Status.State, rep.StatusErr),
		"Daemon:    " + rep.daemonLine(),
	}
}

func (rep Report) daemonLine() string {
	if !rep.DaemonRunning {
		return "not running"
	}
	if rep.DaemonPID > 0 {
		return fmt.Sprintf("running (PID %d)", rep.DaemonPID)
	}
	return "running"
}

func valueOr(v string, err error) string {
	if err != nil {
		return "unavailable (" + err.Error() + ")"
	}
	if v == "" {
		return "unknown"
	}
	return v
}
