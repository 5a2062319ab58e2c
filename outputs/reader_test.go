/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs_test

import (
	"os"
	"path/filepath"
	"testing"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/outputs"
	"github.com/google/go-cmp/cmp"
)

func TestReadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for name, content := range map[string]string{
		"add-comment-2.json":  `{"body": "second"}`,
		"add-comment-1.json":  `{"body": "first"}`,
		"create-issue-1.json": `{"title": "t"}`,
		"notes.txt":           "ignored",
		"UPPER-1.json":        "ignored",
		"add-comment-.json":   "ignored",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	files, err := outputs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	type id struct {
		Type agentspec.OutputType
		Seq  int
	}
	var got []id
	for _, f := range files {
		got = append(got, id{f.Type, f.Seq})
	}
	want := []id{
		{agentspec.OutputAddComment, 1},
		{agentspec.OutputAddComment, 2},
		{agentspec.OutputCreateIssue, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("file order (-want +got):\n%s", diff)
	}
	if string(files[0].Raw) != `{"body": "first"}` {
		t.Fatalf("unexpected raw content: %s", files[0].Raw)
	}
}

func TestReadDirMissing(t *testing.T) {
	t.Parallel()
	files, err := outputs.ReadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if files != nil {
		t.Fatalf("expected no files for a missing directory, got %d", len(files))
	}
}
