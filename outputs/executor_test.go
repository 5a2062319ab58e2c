/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/outputs"
)

// fakeApplier records every mutation and can fail selectively.
type fakeApplier struct {
	mu       sync.Mutex
	comments []string
	labels   [][]string
	issues   []string

	failComments bool
}

func (f *fakeApplier) CreateComment(_ context.Context, number int, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failComments {
		return "", errors.New("comment forbidden")
	}
	f.comments = append(f.comments, body)
	return fmt.Sprintf("commented on #%d", number), nil
}

func (f *fakeApplier) AddLabels(_ context.Context, number int, labels []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, labels)
	return fmt.Sprintf("labeled #%d", number), nil
}

func (f *fakeApplier) CreateIssue(_ context.Context, title, _ string, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, title)
	return "created issue", nil
}

func (f *fakeApplier) UpdateIssue(context.Context, int, *string, *string, *string) (string, error) {
	return "updated issue", nil
}

func (f *fakeApplier) CreatePullRequest(context.Context, *outputs.CreatePullRequest) (string, error) {
	return "opened pull request", nil
}

func file(typ agentspec.OutputType, seq int, raw string) outputs.File {
	return outputs.File{
		Path: fmt.Sprintf("%s-%d.json", typ, seq),
		Type: typ,
		Seq:  seq,
		Raw:  []byte(raw),
	}
}

func labelerDef(max int) *agentspec.Definition {
	return &agentspec.Definition{
		Name:        "labeler",
		On:          agentspec.Triggers{Issues: &agentspec.EventFilter{}},
		Permissions: []string{"issues: write"},
		Outputs: map[agentspec.OutputType]agentspec.OutputRule{
			agentspec.OutputAddLabels:  {Max: max},
			agentspec.OutputAddComment: {},
		},
	}
}

func TestApplyPerTypeLimit(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	exec := outputs.New(applier, &fakeLabels{existing: []string{"bug", "urgent"}})

	// Two add-labels intents against a max of 1: the first executes, the
	// second is rejected, and the first's success is unaffected.
	results := exec.Apply(context.Background(), []outputs.File{
		file(agentspec.OutputAddLabels, 1, `{"labels": ["bug"]}`),
		file(agentspec.OutputAddLabels, 2, `{"labels": ["urgent"]}`),
	}, labelerDef(1), 42)

	if !results[0].ExecutionSucceeded {
		t.Fatalf("first intent should succeed: %+v", results[0])
	}
	if results[1].ExecutionSucceeded || !strings.Contains(results[1].Error, "exceeds its limit") {
		t.Fatalf("second intent should be limit-rejected: %+v", results[1])
	}
	if len(applier.labels) != 1 || applier.labels[0][0] != "bug" {
		t.Fatalf("applied labels = %v, want only [bug]", applier.labels)
	}
}

func TestApplyUndeclaredType(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	exec := outputs.New(applier, &fakeLabels{existing: []string{"bug"}})

	// The undeclared create-issue intent is rejected without touching the
	// repository, and the declared comment intent still executes.
	results := exec.Apply(context.Background(), []outputs.File{
		file(agentspec.OutputCreateIssue, 1, `{"title": "rogue"}`),
		file(agentspec.OutputAddComment, 1, `{"body": "legit"}`),
	}, labelerDef(1), 42)

	if results[0].ExecutionSucceeded || !strings.Contains(results[0].Error, "not allowed") {
		t.Fatalf("undeclared intent should be rejected: %+v", results[0])
	}
	if len(applier.issues) != 0 {
		t.Fatalf("rejected intent reached the applier: %v", applier.issues)
	}
	if !results[1].ExecutionSucceeded {
		t.Fatalf("declared intent should succeed: %+v", results[1])
	}
}

func TestApplyIsolatedFailures(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{failComments: true}
	exec := outputs.New(applier, &fakeLabels{existing: []string{"bug"}})

	results := exec.Apply(context.Background(), []outputs.File{
		file(agentspec.OutputAddComment, 1, `{"body": "will fail"}`),
		file(agentspec.OutputAddLabels, 1, `{"labels": ["bug"]}`),
	}, labelerDef(0), 42)

	if results[0].ExecutionSucceeded {
		t.Fatalf("comment should have failed: %+v", results[0])
	}
	if !results[0].ValidationPassed {
		t.Fatalf("comment failed execution, not validation: %+v", results[0])
	}
	if !results[1].ExecutionSucceeded {
		t.Fatalf("label intent should be unaffected by the comment failure: %+v", results[1])
	}
}

func TestApplyMalformedIntent(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	exec := outputs.New(applier, &fakeLabels{})

	results := exec.Apply(context.Background(), []outputs.File{
		file(agentspec.OutputAddComment, 1, `{not json`),
	}, labelerDef(0), 42)

	if results[0].ValidationPassed || results[0].Error == "" {
		t.Fatalf("malformed intent should fail decoding: %+v", results[0])
	}
}

func TestApplyValidationFailureSkipsExecution(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	exec := outputs.New(applier, &fakeLabels{existing: []string{"bug"}})

	results := exec.Apply(context.Background(), []outputs.File{
		file(agentspec.OutputAddLabels, 1, `{"labels": ["nonexistent"]}`),
	}, labelerDef(0), 42)

	if results[0].ValidationPassed {
		t.Fatalf("validation should have failed: %+v", results[0])
	}
	if len(applier.labels) != 0 {
		t.Fatalf("invalid intent reached the applier: %v", applier.labels)
	}
}

func TestApplyResultOrderMatchesFileOrder(t *testing.T) {
	t.Parallel()

	applier := &fakeApplier{}
	exec := outputs.New(applier, &fakeLabels{existing: []string{"bug"}})

	files := []outputs.File{
		file(agentspec.OutputAddComment, 1, `{"body": "one"}`),
		file(agentspec.OutputAddLabels, 1, `{"labels": ["bug"]}`),
		file(agentspec.OutputAddComment, 2, `{"body": "two"}`),
	}
	results := exec.Apply(context.Background(), files, labelerDef(0), 42)

	if len(results) != len(files) {
		t.Fatalf("got %d results for %d files", len(results), len(files))
	}
	for i := range files {
		if results[i].File != files[i].Path {
			t.Fatalf("results[%d] = %s, want %s", i, results[i].File, files[i].Path)
		}
	}
}
