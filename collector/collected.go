/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package collector

import (
	"fmt"
	"strings"
	"time"
)

// Item is the uniform projection of an issue, pull request, or discussion.
type Item struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels,omitempty"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Commit is one repository commit.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Release is one published release.
type Release struct {
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	PublishedAt time.Time `json:"published_at"`
}

// WorkflowRun is one completed workflow run.
type WorkflowRun struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Conclusion  string    `json:"conclusion"`
	CompletedAt time.Time `json:"completed_at"`
}

// Stats are point-in-time repository counters.
type Stats struct {
	Stars int `json:"stars"`
	Forks int `json:"forks"`
}

// Collected is the typed bag of repository data handed to the execution
// step. Produced once, consumed read-only.
type Collected struct {
	Issues       []Item        `json:"issues,omitempty"`
	PullRequests []Item        `json:"pull_requests,omitempty"`
	Discussions  []Item        `json:"discussions,omitempty"`
	Commits      []Commit      `json:"commits,omitempty"`
	Releases     []Release     `json:"releases,omitempty"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs,omitempty"`
	Stats        *Stats        `json:"stats,omitempty"`

	TotalItems  int       `json:"total_items"`
	CollectedAt time.Time `json:"collected_at"`
}

// Render flattens the collected data into the text bundle the execution
// step consumes as input context.
func Render(c *Collected) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository context collected at %s (%d items)\n", c.CollectedAt.UTC().Format(time.RFC3339), c.TotalItems)

	writeItems := func(heading string, items []Item) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s (%d)\n", heading, len(items))
		for _, it := range items {
			fmt.Fprintf(&sb, "- #%d [%s] %s (by %s", it.Number, it.State, it.Title, it.Author)
			if len(it.Labels) > 0 {
				fmt.Fprintf(&sb, ", labels: %s", strings.Join(it.Labels, ", "))
			}
			fmt.Fprintf(&sb, ") %s\n", it.URL)
		}
	}

	writeItems("Issues", c.Issues)
	writeItems("Pull requests", c.PullRequests)
	writeItems("Discussions", c.Discussions)

	if len(c.Commits) > 0 {
		fmt.Fprintf(&sb, "\n## Commits (%d)\n", len(c.Commits))
		for _, commit := range c.Commits {
			subject, _, _ := strings.Cut(commit.Message, "\n")
			fmt.Fprintf(&sb, "- %.12s %s (by %s)\n", commit.SHA, subject, commit.Author)
		}
	}
	if len(c.Releases) > 0 {
		fmt.Fprintf(&sb, "\n## Releases (%d)\n", len(c.Releases))
		for _, rel := range c.Releases {
			fmt.Fprintf(&sb, "- %s %s (%s)\n", rel.Tag, rel.Name, rel.PublishedAt.UTC().Format(time.DateOnly))
		}
	}
	if len(c.WorkflowRuns) > 0 {
		fmt.Fprintf(&sb, "\n## Workflow runs (%d)\n", len(c.WorkflowRuns))
		for _, run := range c.WorkflowRuns {
			fmt.Fprintf(&sb, "- %s: %s (%s)\n", run.Name, run.Conclusion, run.CompletedAt.UTC().Format(time.RFC3339))
		}
	}
	if c.Stats != nil {
		fmt.Fprintf(&sb, "\n## Repository stats\n- stars: %d\n- forks: %d\n", c.Stats.Stars, c.Stats.Forks)
	}

	return sb.String()
}
