/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/collector"
	"chainguard.dev/dispatchaf/history"
)

var frozen = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	issues       []collector.Item
	pullRequests []collector.Item
	discussions  []collector.Item
	commits      []collector.Commit
	releases     []collector.Release
	workflowRuns []collector.WorkflowRun
	stats        *collector.Stats

	queries map[string]collector.Query
	err     error
}

func (f *fakeSource) record(kind string, q collector.Query) {
	if f.queries == nil {
		f.queries = map[string]collector.Query{}
	}
	f.queries[kind] = q
}

func (f *fakeSource) Issues(_ context.Context, q collector.Query) ([]collector.Item, error) {
	f.record("issues", q)
	return f.issues, f.err
}

func (f *fakeSource) PullRequests(_ context.Context, q collector.Query) ([]collector.Item, error) {
	f.record("pull_requests", q)
	return f.pullRequests, f.err
}

func (f *fakeSource) Discussions(_ context.Context, q collector.Query) ([]collector.Item, error) {
	f.record("discussions", q)
	return f.discussions, f.err
}

func (f *fakeSource) Commits(_ context.Context, q collector.Query) ([]collector.Commit, error) {
	f.record("commits", q)
	return f.commits, f.err
}

func (f *fakeSource) Releases(_ context.Context, q collector.Query) ([]collector.Release, error) {
	f.record("releases", q)
	return f.releases, f.err
}

func (f *fakeSource) WorkflowRuns(_ context.Context, q collector.Query) ([]collector.WorkflowRun, error) {
	f.record("workflow_runs", q)
	return f.workflowRuns, f.err
}

func (f *fakeSource) Stats(context.Context) (*collector.Stats, error) {
	return f.stats, f.err
}

type fakeRuns struct {
	runs []history.Run
}

func (f *fakeRuns) RecentRuns(context.Context, string, int) ([]history.Run, error) {
	return f.runs, nil
}

func items(n int) []collector.Item {
	out := make([]collector.Item, n)
	for i := range out {
		out[i] = collector.Item{Number: i + 1, Title: "item", State: "open"}
	}
	return out
}

func newCollector(src *fakeSource, runs *fakeRuns) *collector.Collector {
	return collector.New(src, runs, collector.WithClock(func() time.Time { return frozen }))
}

func TestCollect(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		issues: items(3),
		stats:  &collector.Stats{Stars: 12, Forks: 4},
	}
	def := &agentspec.Definition{
		Name: "weekly-report",
		On:   agentspec.Triggers{Schedules: []string{"0 9 * * 1"}},
		Context: &agentspec.ContextSpec{
			Issues: &agentspec.ResourceFilter{State: "open", Labels: []string{"bug"}},
			Stats:  true,
			Window: "7d",
		},
	}

	got, err := newCollector(src, &fakeRuns{}).Collect(context.Background(), def)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.TotalItems != 3 {
		t.Fatalf("total items = %d, want 3", got.TotalItems)
	}
	if got.Stats == nil || got.Stats.Stars != 12 {
		t.Fatalf("stats = %+v, want 12 stars", got.Stats)
	}

	q := src.queries["issues"]
	if q.State != "open" || len(q.Labels) != 1 || q.Labels[0] != "bug" {
		t.Fatalf("issue query = %+v, want open/bug", q)
	}
	if want := frozen.Add(-7 * 24 * time.Hour); !q.Since.Equal(want) {
		t.Fatalf("since = %v, want %v", q.Since, want)
	}
}

func TestCollectBelowThreshold(t *testing.T) {
	t.Parallel()

	src := &fakeSource{issues: items(3)}
	def := &agentspec.Definition{
		Name: "weekly-report",
		Context: &agentspec.ContextSpec{
			Issues:   &agentspec.ResourceFilter{},
			MinItems: 5,
		},
	}

	_, err := newCollector(src, &fakeRuns{}).Collect(context.Background(), def)
	if !errors.Is(err, collector.ErrBelowThreshold) {
		t.Fatalf("expected ErrBelowThreshold, got %v", err)
	}
}

func TestCollectWindowFromLastSuccess(t *testing.T) {
	t.Parallel()

	last := frozen.Add(-36 * time.Hour)
	runs := &fakeRuns{runs: []history.Run{
		{Agent: "digest", Conclusion: "success", CompletedAt: last},
	}}
	src := &fakeSource{issues: items(1)}
	def := &agentspec.Definition{
		Name:    "digest",
		Context: &agentspec.ContextSpec{Issues: &agentspec.ResourceFilter{}},
	}

	if _, err := newCollector(src, runs).Collect(context.Background(), def); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := src.queries["issues"].Since; !got.Equal(last) {
		t.Fatalf("since = %v, want last success %v", got, last)
	}
}

func TestCollectDefaultWindow(t *testing.T) {
	t.Parallel()

	src := &fakeSource{issues: items(1)}
	def := &agentspec.Definition{
		Name:    "digest",
		Context: &agentspec.ContextSpec{Issues: &agentspec.ResourceFilter{}},
	}

	if _, err := newCollector(src, &fakeRuns{}).Collect(context.Background(), def); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got, want := src.queries["issues"].Since, frozen.Add(-7*24*time.Hour); !got.Equal(want) {
		t.Fatalf("since = %v, want default window %v", got, want)
	}
}

func TestCollectPerTypeLimit(t *testing.T) {
	t.Parallel()

	src := &fakeSource{issues: items(1), pullRequests: items(1)}
	def := &agentspec.Definition{
		Name: "digest",
		Context: &agentspec.ContextSpec{
			Issues:          &agentspec.ResourceFilter{},
			PullRequests:    &agentspec.ResourceFilter{},
			MaxItemsPerType: 10,
		},
	}

	if _, err := newCollector(src, &fakeRuns{}).Collect(context.Background(), def); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, kind := range []string{"issues", "pull_requests"} {
		if got := src.queries[kind].Limit; got != 10 {
			t.Fatalf("%s limit = %d, want 10", kind, got)
		}
	}
}

func TestCollectSourceError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("api unavailable")}
	def := &agentspec.Definition{
		Name:    "digest",
		Context: &agentspec.ContextSpec{Issues: &agentspec.ResourceFilter{}},
	}

	_, err := newCollector(src, &fakeRuns{}).Collect(context.Background(), def)
	if err == nil || errors.Is(err, collector.ErrBelowThreshold) {
		t.Fatalf("expected a plain failure, got %v", err)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	c := &collector.Collected{
		Issues: []collector.Item{{
			Number: 7, Title: "Crash on startup", Author: "reporter",
			State: "open", Labels: []string{"bug"}, URL: "https://example.com/7",
		}},
		Commits: []collector.Commit{{
			SHA: "0123456789abcdef", Message: "Fix startup crash\n\nLong body.", Author: "dev",
		}},
		Stats:       &collector.Stats{Stars: 3, Forks: 1},
		TotalItems:  1,
		CollectedAt: frozen,
	}

	got := collector.Render(c)
	for _, want := range []string{
		"## Issues (1)",
		"- #7 [open] Crash on startup (by reporter, labels: bug) https://example.com/7",
		"- 0123456789ab Fix startup crash (by dev)",
		"- stars: 3",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered context missing %q:\n%s", want, got)
		}
	}
}
