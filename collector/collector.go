/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/history"
	"github.com/chainguard-dev/clog"
)

// ErrBelowThreshold marks a run skipped because fewer items than the
// spec's minimum were collected. It is a skip, not a failure: the point of
// the threshold is to avoid execution cost when there is nothing to
// analyze.
var ErrBelowThreshold = errors.New("collected items below minimum threshold")

const (
	defaultMinItems   = 1
	defaultMaxPerType = 50
	defaultWindow     = 7 * 24 * time.Hour
)

// Query narrows one resource type.
type Query struct {
	State  string
	Labels []string
	Author string
	Since  time.Time
	Limit  int
}

// Source provides repository data, one method per resource type.
type Source interface {
	Issues(ctx context.Context, q Query) ([]Item, error)
	PullRequests(ctx context.Context, q Query) ([]Item, error)
	Discussions(ctx context.Context, q Query) ([]Item, error)
	Commits(ctx context.Context, q Query) ([]Commit, error)
	Releases(ctx context.Context, q Query) ([]Release, error)
	WorkflowRuns(ctx context.Context, q Query) ([]WorkflowRun, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Collector resolves an agent's context spec against a Source.
type Collector struct {
	src  Source
	runs history.Source
	now  func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// New creates a Collector. The history source resolves "since last
// successful run" windows.
func New(src Source, runs history.Source, opts ...Option) *Collector {
	c := &Collector{src: src, runs: runs, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect gathers everything the definition's context spec requests.
// It returns ErrBelowThreshold (wrapped) when the total falls below the
// spec's minimum, and a plain error when a platform call fails.
func (c *Collector) Collect(ctx context.Context, def *agentspec.Definition) (*Collected, error) {
	spec := def.Context
	if spec == nil {
		return nil, fmt.Errorf("agent %q has no context spec", def.Name)
	}
	log := clog.FromContext(ctx).With("agent", def.Name)

	since, err := c.resolveWindow(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("resolving collection window: %w", err)
	}

	limit := spec.MaxItemsPerType
	if limit <= 0 {
		limit = defaultMaxPerType
	}
	query := func(f *agentspec.ResourceFilter) Query {
		return Query{
			State:  f.State,
			Labels: f.Labels,
			Author: f.Author,
			Since:  since,
			Limit:  limit,
		}
	}

	out := &Collected{CollectedAt: c.now()}

	if spec.Issues != nil {
		if out.Issues, err = c.src.Issues(ctx, query(spec.Issues)); err != nil {
			return nil, fmt.Errorf("collecting issues: %w", err)
		}
		out.TotalItems += len(out.Issues)
	}
	if spec.PullRequests != nil {
		if out.PullRequests, err = c.src.PullRequests(ctx, query(spec.PullRequests)); err != nil {
			return nil, fmt.Errorf("collecting pull requests: %w", err)
		}
		out.TotalItems += len(out.PullRequests)
	}
	if spec.Discussions != nil {
		if out.Discussions, err = c.src.Discussions(ctx, query(spec.Discussions)); err != nil {
			return nil, fmt.Errorf("collecting discussions: %w", err)
		}
		out.TotalItems += len(out.Discussions)
	}
	if spec.Commits != nil {
		if out.Commits, err = c.src.Commits(ctx, query(spec.Commits)); err != nil {
			return nil, fmt.Errorf("collecting commits: %w", err)
		}
		out.TotalItems += len(out.Commits)
	}
	if spec.Releases != nil {
		if out.Releases, err = c.src.Releases(ctx, query(spec.Releases)); err != nil {
			return nil, fmt.Errorf("collecting releases: %w", err)
		}
		out.TotalItems += len(out.Releases)
	}
	if spec.WorkflowRuns != nil {
		if out.WorkflowRuns, err = c.src.WorkflowRuns(ctx, query(spec.WorkflowRuns)); err != nil {
			return nil, fmt.Errorf("collecting workflow runs: %w", err)
		}
		out.TotalItems += len(out.WorkflowRuns)
	}
	if spec.Stats {
		if out.Stats, err = c.src.Stats(ctx); err != nil {
			return nil, fmt.Errorf("collecting repository stats: %w", err)
		}
	}

	minItems := spec.MinItems
	if minItems <= 0 {
		minItems = defaultMinItems
	}
	if out.TotalItems < minItems {
		log.With("total", out.TotalItems).With("min", minItems).Info("Skipping: below collection threshold")
		return nil, fmt.Errorf("%d of %d items: %w", out.TotalItems, minItems, ErrBelowThreshold)
	}

	log.With("total", out.TotalItems).With("since", since).Info("Collected context")
	return out, nil
}

// resolveWindow picks the collection start: the explicit window when set,
// otherwise the agent's last successful run, otherwise the default window.
func (c *Collector) resolveWindow(ctx context.Context, def *agentspec.Definition) (time.Time, error) {
	if w := def.Context.Window; w != "" {
		d, err := agentspec.ParseWindow(w)
		if err != nil {
			return time.Time{}, err
		}
		return c.now().Add(-d), nil
	}
	last, ok, err := history.LastSuccess(ctx, c.runs, def.Name)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return last, nil
	}
	return c.now().Add(-defaultWindow), nil
}
