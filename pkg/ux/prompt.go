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
	"errors"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned by Confirm when no terminal is attached.
var ErrNotInteractive = errors.New("not an interactive terminal")

// ConfirmFunc asks a yes/no question. Tests replace it.
var ConfirmFunc = confirmHuh

// Confirm asks a yes/no question.
//
// # Outputs
//
//   - bool: true if the operator chose Yes
//   - error: ErrNotInteractive without a terminal; huh.ErrUserAborted on Ctrl+C
func Confirm(question string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}
	return ConfirmFunc(question)
}

func confirmHuh(question string) (bool, error) {
	var answer bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&answer).
		WithTheme(Theme()).
		Run()
	return answer, err
}

// Theme returns the huh theme in the vpnkeeper palette.
func Theme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Title = t.Focused.Title.Foreground(ColorTealBright).Bold(true)
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(ColorTealPrimary).Foreground(ColorInk)
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(ColorSlate)
	t.Blurred = t.Focused
	return t
}
