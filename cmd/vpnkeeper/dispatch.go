// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import "strings"

// Command is the closed set of top-level commands.
type Command int

const (
	// CommandUnknown prints usage and does nothing else.
	CommandUnknown Command = iota
	CommandReset
	CommandConnect
	CommandBruteforce
	CommandDiagnose
	CommandUpdate
	CommandCheckUpdate
	CommandVersion
)

var commandNames = map[Command]string{
	CommandReset:       "reset",
	CommandConnect:     "connect",
	CommandBruteforce:  "bruteforce",
	CommandDiagnose:    "diagnose",
	CommandUpdate:      "update",
	CommandCheckUpdate: "check-update",
	CommandVersion:     "version",
}

// Commands returns every known command in help order.
func Commands() []Command {
	return []Command{
		CommandReset,
		CommandConnect,
		CommandBruteforce,
		CommandDiagnose,
		CommandUpdate,
		CommandCheckUpdate,
		CommandVersion,
	}
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCommand maps a command-line word to a Command. Matching is exact.
func ParseCommand(s string) Command {
	for c, name := range commandNames {
		if s == name {
			return c
		}
	}
	return CommandUnknown
}

// requiresUpdateGate reports whether the command runs CheckAndUpdate first.
// update and check-update drive the updater themselves.
func (c Command) requiresUpdateGate() bool {
	switch c {
	case CommandReset, CommandConnect, CommandBruteforce, CommandDiagnose:
		return true
	default:
		return false
	}
}

// needsApp reports whether the command touches config, collaborators or files.
func (c Command) needsApp() bool {
	switch c {
	case CommandUnknown, CommandVersion:
		return false
	default:
		return true
	}
}

func usage() string {
	names := make([]string, 0, len(commandNames))
	for _, c := range Commands() {
		names = append(names, c.String())
	}
	return "Usage: vpnkeeper {" + strings.Join(names, "|") + "}"
}
