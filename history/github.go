/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v75/github"
)

// WorkflowFileFunc maps an agent name to the workflow file its compiled job
// runs under. The default assumes "{agent}.lock.yml", the convention the
// definition compiler emits.
type WorkflowFileFunc func(agent string) string

// GitHub reads run history from the Actions API.
type GitHub struct {
	client       *github.Client
	owner, repo  string
	workflowFile WorkflowFileFunc
	callTimeout  time.Duration
}

// GitHubOption configures a GitHub history source.
type GitHubOption func(*GitHub)

// WithWorkflowFile overrides the agent-to-workflow-file mapping.
func WithWorkflowFile(fn WorkflowFileFunc) GitHubOption {
	return func(g *GitHub) {
		g.workflowFile = fn
	}
}

// WithCallTimeout bounds each Actions API call.
func WithCallTimeout(d time.Duration) GitHubOption {
	return func(g *GitHub) {
		g.callTimeout = d
	}
}

// NewGitHub creates an Actions-backed history source for one repository.
func NewGitHub(client *github.Client, owner, repo string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		client:       client,
		owner:        owner,
		repo:         repo,
		workflowFile: func(agent string) string { return agent + ".lock.yml" },
		callTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecentRuns lists completed runs of the agent's workflow, most recent
// first, as the Actions API orders them.
func (g *GitHub) RecentRuns(ctx context.Context, agent string, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 100
	}
	runs, _, err := g.client.Actions.ListWorkflowRunsByFileName(ctx, g.owner, g.repo, g.workflowFile(agent), &github.ListWorkflowRunsOptions{
		Status:      "completed",
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflow runs for %s: %w", agent, err)
	}

	out := make([]Run, 0, len(runs.WorkflowRuns))
	for _, wr := range runs.WorkflowRuns {
		out = append(out, Run{
			Agent:       agent,
			Conclusion:  wr.GetConclusion(),
			CompletedAt: wr.GetUpdatedAt().Time,
			URL:         wr.GetHTMLURL(),
		})
	}
	return out, nil
}
