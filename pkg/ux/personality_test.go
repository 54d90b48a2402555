// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"testing"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{" min ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"", PersonalityStandard},
		{"unknown", PersonalityStandard},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePersonalityLevel(tt.in); got != tt.want {
				t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetPersonalityLevel_TogglesTips(t *testing.T) {
	withLevel(t, PersonalityMachine)
	if GetPersonality().ShowTips {
		t.Error("machine mode should not show tips")
	}

	SetPersonalityLevel(PersonalityFull)
	if !GetPersonality().ShowTips {
		t.Error("full mode should show tips")
	}
}

func TestInitPersonality_FlagWins(t *testing.T) {
	withLevel(t, PersonalityStandard)
	t.Setenv(PersonalityEnv, "full")

	InitPersonality("minimal")
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("got %q, want minimal", got)
	}
}

func TestInitPersonality_EnvBeforeTerminal(t *testing.T) {
	withLevel(t, PersonalityStandard)
	t.Setenv(PersonalityEnv, "full")

	InitPersonality("")
	if got := GetPersonality().Level; got != PersonalityFull {
		t.Errorf("got %q, want full", got)
	}
}

func TestInitPersonality_NonTerminalIsMachine(t *testing.T) {
	withLevel(t, PersonalityStandard)
	t.Setenv(PersonalityEnv, "")

	// go test runs with stdout redirected.
	if isTerminal(os.Stdout) {
		t.Skip("stdout is a terminal")
	}
	InitPersonality("")
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("got %q, want machine", got)
	}
}

func TestShouldShowProgress(t *testing.T) {
	withLevel(t, PersonalityMachine)
	if ShouldShowProgress() {
		t.Error("machine mode should not show progress")
	}
	SetPersonalityLevel(PersonalityMinimal)
	if !ShouldShowProgress() {
		t.Error("minimal mode should show progress")
	}
}

func TestIsInteractive_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)
	if IsInteractive() {
		t.Error("machine mode is never interactive")
	}
}
