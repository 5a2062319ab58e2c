/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentspec_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"github.com/google/go-cmp/cmp"
)

func writeDefinition(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", file, err)
	}
}

const triageYAML = `
name: triage
on:
  issues:
    types: [opened]
permissions:
  - "issues: write"
outputs:
  add-comment: {}
  add-labels:
    max: 3
`

func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeDefinition(t, dir, "b-weekly.yaml", `
name: weekly-report
on:
  schedule: ["0 9 * * 1"]
context:
  issues:
    state: open
  min_items: 5
`)
	writeDefinition(t, dir, "a-triage.yaml", triageYAML)
	writeDefinition(t, dir, "README.md", "not a definition")

	defs, broken := agentspec.LoadDir(context.Background(), dir)
	if len(broken) != 0 {
		t.Fatalf("unexpected load errors: %v", broken)
	}

	var names []string
	for _, def := range defs {
		names = append(names, def.Name)
	}
	want := []string{"triage", "weekly-report"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("agent names (-want +got):\n%s", diff)
	}

	triage := defs[0]
	if got := triage.Outputs[agentspec.OutputAddLabels].Max; got != 3 {
		t.Fatalf("expected add-labels max 3, got %d", got)
	}
	if !triage.On.Matches("issues", "opened") {
		t.Fatal("expected triage to match issues/opened")
	}
}

func TestLoadDirExcludesBroken(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeDefinition(t, dir, "good.yaml", triageYAML)
	writeDefinition(t, dir, "no-name.yaml", `
on:
  issues: {}
`)
	writeDefinition(t, dir, "no-trigger.yaml", `
name: idle
`)
	writeDefinition(t, dir, "unknown-field.yaml", `
name: odd
on:
  issues: {}
prompt_injection: yes please
`)

	defs, broken := agentspec.LoadDir(context.Background(), dir)
	if len(defs) != 1 || defs[0].Name != "triage" {
		t.Fatalf("expected only triage to load, got %d defs", len(defs))
	}
	if len(broken) != 3 {
		t.Fatalf("expected 3 load errors, got %d: %v", len(broken), broken)
	}
	// Lexical file order is preserved in the error list.
	for i, want := range []string{"no-name.yaml", "no-trigger.yaml", "unknown-field.yaml"} {
		if filepath.Base(broken[i].Path) != want {
			t.Fatalf("broken[%d] = %s, want %s", i, broken[i].Path, want)
		}
	}
}

func TestLoadDirDuplicateNames(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeDefinition(t, dir, "first.yaml", triageYAML)
	writeDefinition(t, dir, "second.yaml", triageYAML)

	defs, broken := agentspec.LoadDir(context.Background(), dir)
	if len(defs) != 1 {
		t.Fatalf("expected 1 def, got %d", len(defs))
	}
	if len(broken) != 1 {
		t.Fatalf("expected 1 load error, got %d", len(broken))
	}
	if !strings.Contains(broken[0].Error(), "already declared") {
		t.Fatalf("expected duplicate-name error, got %v", broken[0])
	}
}

func TestLoadDirMissing(t *testing.T) {
	t.Parallel()
	defs, broken := agentspec.LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if defs != nil || broken != nil {
		t.Fatalf("expected nil results for a missing directory, got %v / %v", defs, broken)
	}
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "36h", want: 36 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "0d", wantErr: true},
		{in: "-2h", wantErr: true},
		{in: "fortnight", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := agentspec.ParseWindow(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseWindow(%q) = %v, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWindow(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseWindow(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
