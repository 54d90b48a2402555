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
	"bufio"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// VersionToken is an opaque release identifier such as "1.0.6".
//
// Tokens are compared byte-for-byte. No ordering is implied.
type VersionToken string

// Empty reports whether the token carries no version.
func (v VersionToken) Empty() bool {
	return v == ""
}

func (v VersionToken) String() string {
	return string(v)
}

// versionLine matches a declaration such as
//
//	VERSION="1.0.6"
//	readonly VERSION='1.0.6'
//	export VERSION=1.0.6
var versionLine = regexp.MustCompile(`^\s*(?:(?:readonly|export)\s+)*VERSION=(\S+)`)

// ExtractVersion returns the value of the first version declaration in text
// with surrounding quote characters stripped. It returns "" when no line
// matches.
func ExtractVersion(text string) VersionToken {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := versionLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		return VersionToken(strings.Trim(m[1], `"'`))
	}
	return ""
}

// Status is the result of comparing the local token to the remote one.
type Status int

const (
	// StatusUnknown means the remote token could not be determined.
	StatusUnknown Status = iota
	// StatusUpToDate means the tokens are identical.
	StatusUpToDate
	// StatusOutdated means the tokens differ.
	StatusOutdated
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up_to_date"
	case StatusOutdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// Compare decides whether local needs replacing.
//
// # Description
//
// An empty remote yields StatusUnknown. Otherwise any byte difference yields
// StatusOutdated, including a remote that is older than local. Comparing a
// token to itself yields StatusUpToDate.
func Compare(local, remote VersionToken) Status {
	if remote.Empty() {
		return StatusUnknown
	}
	if local == remote {
		return StatusUpToDate
	}
	return StatusOutdated
}

// Direction describes how remote relates to local when both parse as
// semantic versions. It is informational; Compare alone decides.
type Direction int

const (
	// DirectionUnknown means at least one token is not a semantic version.
	DirectionUnknown Direction = iota
	// DirectionUpgrade means remote is newer.
	DirectionUpgrade
	// DirectionDowngrade means remote is older.
	DirectionDowngrade
	// DirectionSidegrade means the tokens differ only in build metadata or
	// spelling, e.g. "1.0" versus "1.0.0".
	DirectionSidegrade
)

func (d Direction) String() string {
	switch d {
	case DirectionUpgrade:
		return "upgrade"
	case DirectionDowngrade:
		return "downgrade"
	case DirectionSidegrade:
		return "sidegrade"
	default:
		return "unknown"
	}
}

// DirectionOf compares local and remote as semantic versions.
func DirectionOf(local, remote VersionToken) Direction {
	l, r := canonicalSemver(local), canonicalSemver(remote)
	if l == "" || r == "" {
		return DirectionUnknown
	}
	switch semver.Compare(l, r) {
	case -1:
		return DirectionUpgrade
	case 1:
		return DirectionDowngrade
	default:
		return DirectionSidegrade
	}
}

func canonicalSemver(v VersionToken) string {
	s := string(v)
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return ""
	}
	return s
}
