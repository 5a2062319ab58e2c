/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
)

// GitHubFacts implements PermissionSource, PullRequestSource, and
// DependencySource against the live platform. Every call carries a bounded
// timeout; a timeout surfaces as a stage failure, never a hang.
type GitHubFacts struct {
	client      *github.Client
	gql         *githubv4.Client
	owner, repo string
	callTimeout time.Duration
}

// GitHubOption configures GitHubFacts.
type GitHubOption func(*GitHubFacts)

// WithCallTimeout bounds each platform call.
func WithCallTimeout(d time.Duration) GitHubOption {
	return func(f *GitHubFacts) {
		f.callTimeout = d
	}
}

// NewGitHubFacts creates fact sources for one repository. The GraphQL
// client is derived from the REST client's transport so both carry the same
// credentials.
func NewGitHubFacts(client *github.Client, owner, repo string, opts ...GitHubOption) *GitHubFacts {
	f := &GitHubFacts{
		client:      client,
		gql:         githubv4.NewClient(client.Client()),
		owner:       owner,
		repo:        repo,
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RepoPermission returns the actor's repository permission level.
func (f *GitHubFacts) RepoPermission(ctx context.Context, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	level, _, err := f.client.Repositories.GetPermissionLevel(ctx, f.owner, f.repo, user)
	if err != nil {
		if is404(err) {
			return "none", nil
		}
		return "", fmt.Errorf("getting permission level: %w", err)
	}
	return level.GetPermission(), nil
}

// OrgRole returns the actor's role in the repository's organization, or
// empty when the actor is not a member (or the owner is not an org).
func (f *GitHubFacts) OrgRole(ctx context.Context, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	membership, _, err := f.client.Organizations.GetOrgMembership(ctx, user, f.owner)
	if err != nil {
		if is404(err) {
			return "", nil
		}
		return "", fmt.Errorf("getting org membership: %w", err)
	}
	if membership.GetState() != "active" {
		return "", nil
	}
	return membership.GetRole(), nil
}

// TeamMember reports whether the actor is an active member of the team
// (slug) in the repository's organization.
func (f *GitHubFacts) TeamMember(ctx context.Context, team, user string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	membership, _, err := f.client.Teams.GetTeamMembershipBySlug(ctx, f.owner, team, user)
	if err != nil {
		if is404(err) {
			return false, nil
		}
		return false, fmt.Errorf("getting team membership: %w", err)
	}
	return membership.GetState() == "active", nil
}

// OpenCount counts the agent's open pull requests. Attribution is by the
// "agent:{name}" label the output executor applies to every PR it creates.
func (f *GitHubFacts) OpenCount(ctx context.Context, agent string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	query := fmt.Sprintf(`repo:%s/%s is:pr is:open label:"agent:%s"`, f.owner, f.repo, agent)
	result, _, err := f.client.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("searching open PRs: %w", err)
	}
	return result.GetTotal(), nil
}

// OpenBlockers counts the open issues the target issue tracks in its task
// list; those are its blocking dependencies.
func (f *GitHubFacts) OpenBlockers(ctx context.Context, number int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	var query struct {
		Repository struct {
			Issue struct {
				TrackedIssues struct {
					Nodes []struct {
						Number int
						State  string
					}
				} `graphql:"trackedIssues(first: 100)"`
			} `graphql:"issue(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner":  githubv4.String(f.owner),
		"repo":   githubv4.String(f.repo),
		"number": githubv4.Int(number),
	}
	if err := f.gql.Query(ctx, &query, variables); err != nil {
		return 0, fmt.Errorf("querying tracked issues: %w", err)
	}

	open := 0
	for _, node := range query.Repository.Issue.TrackedIssues.Nodes {
		if node.State == "OPEN" {
			open++
		}
	}
	return open, nil
}

func is404(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
