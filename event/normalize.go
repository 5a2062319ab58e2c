/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v75/github"
)

// Raw is the unparsed event as delivered by the platform, plus the ambient
// run metadata the payload itself does not carry.
type Raw struct {
	Name       string // e.g. "issues", "pull_request", "schedule"
	Action     string // e.g. "opened"; may be empty, payload wins
	Payload    []byte
	Repository string // "owner/repo" fallback when the payload has none
	Ref        string
	SHA        string
	Actor      string // fallback when the payload has no sender
}

// Normalize projects a raw event into a DispatchContext. It fails only when
// the payload cannot be parsed; absent optional fields normalize to empty
// values.
func Normalize(raw Raw) (*DispatchContext, error) {
	dc := &DispatchContext{
		EventName:  raw.Name,
		Action:     raw.Action,
		Repository: raw.Repository,
		Ref:        raw.Ref,
		SHA:        raw.SHA,
		Actor:      raw.Actor,
	}
	dc.Owner, dc.Repo = splitRepository(raw.Repository)

	// Schedule ticks are not webhooks, so they never parse as one. The
	// payload is at most {"schedule": "<cron>"}.
	if raw.Name == "schedule" {
		var tick struct {
			Schedule string `json:"schedule"`
		}
		if len(raw.Payload) > 0 {
			if err := json.Unmarshal(raw.Payload, &tick); err != nil {
				return nil, fmt.Errorf("parsing schedule payload: %w", err)
			}
		}
		dc.Schedule = &Schedule{Cron: tick.Schedule}
		return dc, nil
	}

	parsed, err := github.ParseWebHook(raw.Name, raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", raw.Name, err)
	}

	switch ev := parsed.(type) {
	case *github.IssuesEvent:
		applyRepo(dc, ev.GetRepo())
		applySender(dc, ev.GetSender())
		setAction(dc, ev.GetAction())
		issue := ev.GetIssue()
		dc.Issue = &Subject{
			Number: issue.GetNumber(),
			Title:  issue.GetTitle(),
			Body:   issue.GetBody(),
			Author: issue.GetUser().GetLogin(),
			Labels: labelNames(issue.Labels),
			State:  issue.GetState(),
			URL:    issue.GetHTMLURL(),
		}

	case *github.PullRequestEvent:
		applyRepo(dc, ev.GetRepo())
		applySender(dc, ev.GetSender())
		setAction(dc, ev.GetAction())
		pr := ev.GetPullRequest()
		dc.PullRequest = &PullRequest{
			Subject: Subject{
				Number: pr.GetNumber(),
				Title:  pr.GetTitle(),
				Body:   pr.GetBody(),
				Author: pr.GetUser().GetLogin(),
				Labels: labelNames(pr.Labels),
				State:  pr.GetState(),
				URL:    pr.GetHTMLURL(),
			},
			BaseRef: pr.GetBase().GetRef(),
			HeadRef: pr.GetHead().GetRef(),
		}
		if sha := pr.GetHead().GetSHA(); sha != "" {
			dc.SHA = sha
		}

	case *github.DiscussionEvent:
		applyRepo(dc, ev.GetRepo())
		applySender(dc, ev.GetSender())
		setAction(dc, ev.GetAction())
		disc := ev.GetDiscussion()
		dc.Discussion = &Subject{
			Number: disc.GetNumber(),
			Title:  disc.GetTitle(),
			Body:   disc.GetBody(),
			Author: disc.GetUser().GetLogin(),
			Labels: []string{},
			State:  disc.GetState(),
			URL:    disc.GetHTMLURL(),
		}

	case *github.WorkflowDispatchEvent:
		applyRepo(dc, ev.GetRepo())
		applySender(dc, ev.GetSender())
		dc.Inputs = decodeInputs(ev.Inputs)
		if ref := ev.GetRef(); ref != "" {
			dc.Ref = ref
		}

	case *github.RepositoryDispatchEvent:
		applyRepo(dc, ev.GetRepo())
		applySender(dc, ev.GetSender())
		setAction(dc, ev.GetAction())
		dc.External = &External{
			Type:    ev.GetAction(),
			Payload: decodePayload(ev.ClientPayload),
		}

	default:
		return nil, fmt.Errorf("unsupported event %q", raw.Name)
	}

	return dc, nil
}

func applyRepo(dc *DispatchContext, repo *github.Repository) {
	if full := repo.GetFullName(); full != "" {
		dc.Repository = full
		dc.Owner, dc.Repo = splitRepository(full)
	}
}

func applySender(dc *DispatchContext, sender *github.User) {
	if login := sender.GetLogin(); login != "" {
		dc.Actor = login
	}
}

func setAction(dc *DispatchContext, action string) {
	if action != "" {
		dc.Action = action
	}
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}

// decodeInputs flattens workflow_dispatch inputs into strings; dispatch
// inputs are strings on the platform side, but tolerate anything.
func decodeInputs(raw json.RawMessage) map[string]string {
	inputs := map[string]string{}
	if len(raw) == 0 {
		return inputs
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return inputs
	}
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			inputs[k] = val
		default:
			inputs[k] = fmt.Sprint(val)
		}
	}
	return inputs
}

func decodePayload(raw json.RawMessage) map[string]any {
	payload := map[string]any{}
	if len(raw) == 0 {
		return payload
	}
	// Best effort: an unparseable client payload normalizes to empty.
	_ = json.Unmarshal(raw, &payload)
	return payload
}
