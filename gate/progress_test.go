/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate_test

import (
	"testing"

	"chainguard.dev/dispatchaf/gate"
)

func TestRenderProgress(t *testing.T) {
	t.Parallel()

	got := gate.RenderProgress("triage", []string{"validation", "collection", "execution"}, map[string]string{
		"validation": gate.StageCompleted,
		"collection": gate.StageRunning,
	})
	want := "### Agent `triage` run\n\n" +
		"- ✅ validation: completed\n" +
		"- 🔄 collection: running\n" +
		"- ⬜ execution: pending\n"
	if got != want {
		t.Fatalf("rendered progress:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderProgressUnknownStatus(t *testing.T) {
	t.Parallel()

	got := gate.RenderProgress("triage", []string{"validation"}, map[string]string{
		"validation": "exploded",
	})
	want := "### Agent `triage` run\n\n- ⬜ validation: exploded\n"
	if got != want {
		t.Fatalf("rendered progress:\n%s\nwant:\n%s", got, want)
	}
}
