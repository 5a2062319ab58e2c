/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
)

// GitHubSource implements Source against one repository. Discussions have
// no REST list API, so they go through GraphQL; everything else is REST.
type GitHubSource struct {
	client      *github.Client
	gql         *githubv4.Client
	owner, repo string
	callTimeout time.Duration
}

// GitHubOption configures a GitHubSource.
type GitHubOption func(*GitHubSource)

// WithCallTimeout bounds each platform call.
func WithCallTimeout(d time.Duration) GitHubOption {
	return func(s *GitHubSource) {
		s.callTimeout = d
	}
}

// NewGitHubSource creates a Source for one repository.
func NewGitHubSource(client *github.Client, owner, repo string, opts ...GitHubOption) *GitHubSource {
	s := &GitHubSource{
		client:      client,
		gql:         githubv4.NewClient(client.Client()),
		owner:       owner,
		repo:        repo,
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issues lists repository issues matching the query. The issues API also
// returns pull requests; those are dropped here.
func (s *GitHubSource) Issues(ctx context.Context, q Query) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	state := q.State
	if state == "" {
		state = "open"
	}
	issues, _, err := s.client.Issues.ListByRepo(ctx, s.owner, s.repo, &github.IssueListByRepoOptions{
		State:       state,
		Labels:      q.Labels,
		Creator:     q.Author,
		Since:       q.Since,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: clampLimit(q.Limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}

	items := make([]Item, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		items = append(items, Item{
			Number:    issue.GetNumber(),
			Title:     issue.GetTitle(),
			Author:    issue.GetUser().GetLogin(),
			State:     issue.GetState(),
			Labels:    issueLabelNames(issue.Labels),
			URL:       issue.GetHTMLURL(),
			UpdatedAt: issue.GetUpdatedAt().Time,
		})
		if len(items) >= q.Limit {
			break
		}
	}
	return items, nil
}

// PullRequests lists pull requests matching the query. The PR list API has
// no label/author/since parameters, so those filters apply client-side.
func (s *GitHubSource) PullRequests(ctx context.Context, q Query) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	state := q.State
	if state == "" {
		state = "open"
	}
	prs, _, err := s.client.PullRequests.List(ctx, s.owner, s.repo, &github.PullRequestListOptions{
		State:       state,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", err)
	}

	var items []Item
	for _, pr := range prs {
		if !q.Since.IsZero() && pr.GetUpdatedAt().Time.Before(q.Since) {
			continue
		}
		if q.Author != "" && pr.GetUser().GetLogin() != q.Author {
			continue
		}
		labels := issueLabelNames(pr.Labels)
		if !hasAllLabels(labels, q.Labels) {
			continue
		}
		items = append(items, Item{
			Number:    pr.GetNumber(),
			Title:     pr.GetTitle(),
			Author:    pr.GetUser().GetLogin(),
			State:     pr.GetState(),
			Labels:    labels,
			URL:       pr.GetHTMLURL(),
			UpdatedAt: pr.GetUpdatedAt().Time,
		})
		if len(items) >= q.Limit {
			break
		}
	}
	return items, nil
}

// Discussions lists discussions via GraphQL, most recently updated first.
func (s *GitHubSource) Discussions(ctx context.Context, q Query) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var query struct {
		Repository struct {
			Discussions struct {
				Nodes []struct {
					Number int
					Title  string
					Url    string
					Closed bool
					Author struct {
						Login string
					}
					UpdatedAt time.Time
					Labels    struct {
						Nodes []struct {
							Name string
						}
					} `graphql:"labels(first: 20)"`
				}
			} `graphql:"discussions(first: $limit, orderBy: {field: UPDATED_AT, direction: DESC})"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner": githubv4.String(s.owner),
		"repo":  githubv4.String(s.repo),
		"limit": githubv4.Int(clampLimit(q.Limit)),
	}
	if err := s.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("querying discussions: %w", err)
	}

	var items []Item
	for _, node := range query.Repository.Discussions.Nodes {
		state := "open"
		if node.Closed {
			state = "closed"
		}
		if q.State != "" && q.State != state {
			continue
		}
		if !q.Since.IsZero() && node.UpdatedAt.Before(q.Since) {
			continue
		}
		if q.Author != "" && node.Author.Login != q.Author {
			continue
		}
		var labels []string
		for _, l := range node.Labels.Nodes {
			labels = append(labels, l.Name)
		}
		if !hasAllLabels(labels, q.Labels) {
			continue
		}
		items = append(items, Item{
			Number:    node.Number,
			Title:     node.Title,
			Author:    node.Author.Login,
			State:     state,
			Labels:    labels,
			URL:       node.Url,
			UpdatedAt: node.UpdatedAt,
		})
	}
	return items, nil
}

// Commits lists commits since the window start.
func (s *GitHubSource) Commits(ctx context.Context, q Query) ([]Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	commits, _, err := s.client.Repositories.ListCommits(ctx, s.owner, s.repo, &github.CommitsListOptions{
		Since:       q.Since,
		Author:      q.Author,
		ListOptions: github.ListOptions{PerPage: clampLimit(q.Limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, Commit{
			SHA:     c.GetSHA(),
			Message: c.GetCommit().GetMessage(),
			Author:  c.GetCommit().GetAuthor().GetName(),
			When:    c.GetCommit().GetAuthor().GetDate().Time,
		})
	}
	return out, nil
}

// Releases lists releases published within the window.
func (s *GitHubSource) Releases(ctx context.Context, q Query) ([]Release, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	releases, _, err := s.client.Repositories.ListReleases(ctx, s.owner, s.repo, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}

	var out []Release
	for _, rel := range releases {
		if !q.Since.IsZero() && rel.GetPublishedAt().Time.Before(q.Since) {
			continue
		}
		out = append(out, Release{
			Tag:         rel.GetTagName(),
			Name:        rel.GetName(),
			PublishedAt: rel.GetPublishedAt().Time,
		})
		if len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// WorkflowRuns lists completed workflow runs within the window.
func (s *GitHubSource) WorkflowRuns(ctx context.Context, q Query) ([]WorkflowRun, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	runs, _, err := s.client.Actions.ListRepositoryWorkflowRuns(ctx, s.owner, s.repo, &github.ListWorkflowRunsOptions{
		Status:      "completed",
		ListOptions: github.ListOptions{PerPage: clampLimit(q.Limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("listing workflow runs: %w", err)
	}

	var out []WorkflowRun
	for _, run := range runs.WorkflowRuns {
		if !q.Since.IsZero() && run.GetUpdatedAt().Time.Before(q.Since) {
			continue
		}
		out = append(out, WorkflowRun{
			ID:          run.GetID(),
			Name:        run.GetName(),
			Conclusion:  run.GetConclusion(),
			CompletedAt: run.GetUpdatedAt().Time,
		})
	}
	return out, nil
}

// Stats returns point-in-time star and fork counts.
func (s *GitHubSource) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	repo, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
	if err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}
	return &Stats{
		Stars: repo.GetStargazersCount(),
		Forks: repo.GetForksCount(),
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func hasAllLabels(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func issueLabelNames(labels []*github.Label) []string {
	var names []string
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}
