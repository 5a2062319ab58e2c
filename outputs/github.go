/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"chainguard.dev/dispatchaf/internal/retry"
	"github.com/google/go-github/v75/github"
)

// GitHubApplier implements Applier and LabelSource against one repository.
// It is the only component in the pipeline that writes to the repository.
// Every write carries a bounded timeout and rides out secondary rate limits
// with bounded retries.
type GitHubApplier struct {
	client      *github.Client
	owner, repo string
	agent       string
	callTimeout time.Duration
	retryCfg    retry.Config

	branchMu   sync.Mutex
	baseBranch string
}

// ApplierOption configures a GitHubApplier.
type ApplierOption func(*GitHubApplier)

// WithBaseBranch overrides the base branch pull requests are opened
// against. The default is the repository's default branch.
func WithBaseBranch(branch string) ApplierOption {
	return func(a *GitHubApplier) {
		a.baseBranch = branch
	}
}

// WithCallTimeout bounds each platform call.
func WithCallTimeout(d time.Duration) ApplierOption {
	return func(a *GitHubApplier) {
		a.callTimeout = d
	}
}

// WithRetryConfig overrides the write retry policy.
func WithRetryConfig(cfg retry.Config) ApplierOption {
	return func(a *GitHubApplier) {
		a.retryCfg = cfg
	}
}

// NewGitHubApplier creates the applier for one agent run. The agent name
// labels created pull requests ("agent:{name}") so the capacity gate can
// attribute them.
func NewGitHubApplier(client *github.Client, owner, repo, agent string, opts ...ApplierOption) *GitHubApplier {
	a := &GitHubApplier{
		client:      client,
		owner:       owner,
		repo:        repo,
		agent:       agent,
		callTimeout: 60 * time.Second,
		retryCfg:    retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LabelExists reports whether a label is defined in the repository.
func (a *GitHubApplier) LabelExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	_, _, err := a.client.Issues.GetLabel(ctx, a.owner, a.repo, name)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("getting label: %w", err)
	}
	return true, nil
}

// CreateComment posts a comment on an issue or pull request.
func (a *GitHubApplier) CreateComment(ctx context.Context, number int, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	comment, err := retry.Do(ctx, a.retryCfg, "create comment", retry.Retryable, func() (*github.IssueComment, error) {
		c, _, err := a.client.Issues.CreateComment(ctx, a.owner, a.repo, number, &github.IssueComment{
			Body: github.Ptr(body),
		})
		return c, err
	})
	if err != nil {
		return "", fmt.Errorf("creating comment: %w", err)
	}
	return fmt.Sprintf("commented on #%d: %s", number, comment.GetHTMLURL()), nil
}

// AddLabels adds labels to an issue or pull request.
func (a *GitHubApplier) AddLabels(ctx context.Context, number int, labels []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	_, err := retry.Do(ctx, a.retryCfg, "add labels", retry.Retryable, func() (struct{}, error) {
		_, _, err := a.client.Issues.AddLabelsToIssue(ctx, a.owner, a.repo, number, labels)
		return struct{}{}, err
	})
	if err != nil {
		return "", fmt.Errorf("adding labels: %w", err)
	}
	return fmt.Sprintf("added %d label(s) to #%d", len(labels), number), nil
}

// CreateIssue opens a new issue.
func (a *GitHubApplier) CreateIssue(ctx context.Context, title, body string, labels []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	issue, err := retry.Do(ctx, a.retryCfg, "create issue", retry.Retryable, func() (*github.Issue, error) {
		req := &github.IssueRequest{
			Title: github.Ptr(title),
			Body:  github.Ptr(body),
		}
		if len(labels) > 0 {
			req.Labels = &labels
		}
		i, _, err := a.client.Issues.Create(ctx, a.owner, a.repo, req)
		return i, err
	})
	if err != nil {
		return "", fmt.Errorf("creating issue: %w", err)
	}
	return fmt.Sprintf("created issue #%d: %s", issue.GetNumber(), issue.GetHTMLURL()), nil
}

// UpdateIssue edits an issue's title, body, or state.
func (a *GitHubApplier) UpdateIssue(ctx context.Context, number int, title, body, state *string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	_, err := retry.Do(ctx, a.retryCfg, "update issue", retry.Retryable, func() (struct{}, error) {
		_, _, err := a.client.Issues.Edit(ctx, a.owner, a.repo, number, &github.IssueRequest{
			Title: title,
			Body:  body,
			State: state,
		})
		return struct{}{}, err
	})
	if err != nil {
		return "", fmt.Errorf("updating issue: %w", err)
	}
	return fmt.Sprintf("updated issue #%d", number), nil
}

// CreatePullRequest writes the file changes as one commit on a new branch
// via the Git Data API (commits created this way are signed by the
// platform on the token's behalf) and opens a pull request labeled with
// the agent's attribution label.
func (a *GitHubApplier) CreatePullRequest(ctx context.Context, pr *CreatePullRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	base, err := a.base(ctx)
	if err != nil {
		return "", err
	}

	baseRef, _, err := a.client.Git.GetRef(ctx, a.owner, a.repo, "refs/heads/"+base)
	if err != nil {
		return "", fmt.Errorf("getting base ref: %w", err)
	}
	baseSHA := baseRef.GetObject().GetSHA()

	entries := make([]*github.TreeEntry, 0, len(pr.Files))
	for _, file := range pr.Files {
		entries = append(entries, &github.TreeEntry{
			Path:    github.Ptr(file.Path),
			Mode:    github.Ptr("100644"),
			Type:    github.Ptr("blob"),
			Content: github.Ptr(file.Content),
		})
	}
	tree, _, err := a.client.Git.CreateTree(ctx, a.owner, a.repo, baseSHA, entries)
	if err != nil {
		return "", fmt.Errorf("creating tree: %w", err)
	}

	commit, _, err := a.client.Git.CreateCommit(ctx, a.owner, a.repo, github.Commit{
		Message: github.Ptr(pr.Title),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.Ptr(baseSHA)}},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("creating commit: %w", err)
	}

	if _, _, err := a.client.Git.CreateRef(ctx, a.owner, a.repo, github.CreateRef{
		Ref: "refs/heads/" + pr.Branch,
		SHA: commit.GetSHA(),
	}); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", pr.Branch, err)
	}

	created, err := retry.Do(ctx, a.retryCfg, "create pull request", retry.Retryable, func() (*github.PullRequest, error) {
		p, _, err := a.client.PullRequests.Create(ctx, a.owner, a.repo, &github.NewPullRequest{
			Title: github.Ptr(pr.Title),
			Body:  github.Ptr(pr.Body),
			Head:  github.Ptr(pr.Branch),
			Base:  github.Ptr(base),
		})
		return p, err
	})
	if err != nil {
		return "", fmt.Errorf("creating pull request: %w", err)
	}

	// Attribution label feeds the capacity gate's open-PR count.
	if _, _, err := a.client.Issues.AddLabelsToIssue(ctx, a.owner, a.repo, created.GetNumber(), []string{"agent:" + a.agent}); err != nil {
		return "", fmt.Errorf("labeling pull request: %w", err)
	}

	return fmt.Sprintf("created pull request #%d: %s", created.GetNumber(), created.GetHTMLURL()), nil
}

// base returns the branch pull requests open against: the configured
// override when set, otherwise the repository's default branch, resolved
// once and cached for the run.
func (a *GitHubApplier) base(ctx context.Context) (string, error) {
	a.branchMu.Lock()
	defer a.branchMu.Unlock()
	if a.baseBranch != "" {
		return a.baseBranch, nil
	}
	repo, _, err := a.client.Repositories.Get(ctx, a.owner, a.repo)
	if err != nil {
		return "", fmt.Errorf("resolving default branch: %w", err)
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("repository %s/%s reports no default branch", a.owner, a.repo)
	}
	a.baseBranch = repo.GetDefaultBranch()
	return a.baseBranch, nil
}
