// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPrompter struct {
	resp     Response
	err      error
	question string
}

func (p *stubPrompter) Confirm(ctx context.Context, question string) (Response, error) {
	p.question = question
	return p.resp, p.err
}

func TestTroubleshoot(t *testing.T) {
	tests := []struct {
		name      string
		prompter  *stubPrompter
		succeedOn int
		want      TroubleshootOutcome
		wantRuns  int
		wantErr   bool
	}{
		{"yes and recovered", &stubPrompter{resp: ResponseYes}, 1, TroubleshootRecovered, 3, false},
		{"yes but still failing", &stubPrompter{resp: ResponseYes}, 0, TroubleshootStillFailing, 3, true},
		{"no", &stubPrompter{resp: ResponseNo}, 1, TroubleshootDeclined, 0, false},
		{"unknown answer", &stubPrompter{resp: ResponseUnknown}, 1, TroubleshootDeclined, 0, false},
		{"prompt error", &stubPrompter{resp: ResponseYes, err: errors.New("not a terminal")}, 1, TroubleshootDeclined, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			conn := &scriptedConnector{succeedOn: tt.succeedOn}
			m, runs := newTestMachine(t, conn, clock, Options{})

			got, err := m.Troubleshoot(context.Background(), tt.prompter)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRuns, *runs)
			assert.Equal(t, TroubleshootQuestion, tt.prompter.question)
			assert.Empty(t, clock.Sleeps(), "troubleshoot never waits")
			if tt.wantErr {
				assert.ErrorIs(t, err, errConnect)
			} else {
				assert.NoError(t, err)
			}
			if tt.want == TroubleshootDeclined {
				assert.Zero(t, conn.calls)
			} else {
				assert.Equal(t, 1, conn.calls)
			}
		})
	}
}
