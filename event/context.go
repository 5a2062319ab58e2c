/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"strings"
)

// Subject is the uniform projection of an issue, pull request, or
// discussion. Missing optional fields are empty strings or empty slices.
type Subject struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Author string   `json:"author"`
	Labels []string `json:"labels"`
	State  string   `json:"state"`
	URL    string   `json:"url"`
}

// PullRequest extends Subject with branch information.
type PullRequest struct {
	Subject
	BaseRef string `json:"base_ref"`
	HeadRef string `json:"head_ref"`
}

// Schedule describes a cron tick.
type Schedule struct {
	Cron string `json:"cron"`
}

// External describes a repository_dispatch payload.
type External struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// DispatchContext is the normalized event snapshot handed to every later
// stage. It is built once per triggering event and read-only afterwards:
// exactly one of Issue, PullRequest, Discussion, Schedule, and External is
// set (manual dispatches carry only the Inputs map).
type DispatchContext struct {
	EventName  string `json:"event_name"`
	Action     string `json:"action,omitempty"`
	Repository string `json:"repository"` // "owner/repo"
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Ref        string `json:"ref,omitempty"`
	SHA        string `json:"sha,omitempty"`
	Actor      string `json:"actor,omitempty"`

	Issue       *Subject     `json:"issue,omitempty"`
	PullRequest *PullRequest `json:"pull_request,omitempty"`
	Discussion  *Subject     `json:"discussion,omitempty"`
	Schedule    *Schedule    `json:"schedule,omitempty"`
	External    *External    `json:"external,omitempty"`

	// Inputs carries manual dispatch inputs; the "agent" input narrows
	// routing to a single agent.
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Target returns the issue or pull request number the event is about, and
// whether there is one. Discussions number independently of issues and
// pull requests, so discussion events have no write target; schedule,
// manual, and external dispatches have none either.
func (dc *DispatchContext) Target() (int, bool) {
	switch {
	case dc.Issue != nil:
		return dc.Issue.Number, true
	case dc.PullRequest != nil:
		return dc.PullRequest.Number, true
	default:
		return 0, false
	}
}

// TargetsIssueOrPR reports whether the event is issue or pull request
// activity; label gating only applies to those.
func (dc *DispatchContext) TargetsIssueOrPR() bool {
	return dc.Issue != nil || dc.PullRequest != nil
}

func splitRepository(fullName string) (owner, repo string) {
	owner, repo, _ = strings.Cut(fullName, "/")
	return owner, repo
}
