/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/history"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// Tracker reacts to failed runs: it runs a bounded, read-only diagnostic
// pass over recent run history and opens a tracking issue carrying the
// root cause and remediation hints. It never runs for successful runs or
// skips.
type Tracker struct {
	client      *github.Client
	owner, repo string
	runs        history.Source
	summarizer  Summarizer
	callTimeout time.Duration
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithSummarizer adds a model-written triage paragraph to each tracking
// issue. Summary failures degrade to the plain report.
func WithSummarizer(s Summarizer) TrackerOption {
	return func(t *Tracker) {
		t.summarizer = s
	}
}

// NewTracker creates a Tracker for one repository.
func NewTracker(client *github.Client, owner, repo string, runs history.Source, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		client:      client,
		owner:       owner,
		repo:        repo,
		runs:        runs,
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// React opens a tracking issue for a failed manifest when the agent's
// audit policy asks for one. It returns the issue URL, or empty when no
// reaction was warranted.
func (t *Tracker) React(ctx context.Context, m *Manifest, policy agentspec.AuditPolicy) (string, error) {
	log := clog.FromContext(ctx).With("agent", m.Agent)

	if m.Success || !policy.CreateIssue {
		return "", nil
	}

	body := t.compose(ctx, m)

	ctx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	req := &github.IssueRequest{
		Title: github.Ptr(fmt.Sprintf("Agent %s run %s failed (%s)", m.Agent, m.RunID, m.Severity)),
		Body:  github.Ptr(body),
	}
	if len(policy.Labels) > 0 {
		req.Labels = &policy.Labels
	}
	if len(policy.Assignees) > 0 {
		req.Assignees = &policy.Assignees
	}
	issue, _, err := t.client.Issues.Create(ctx, t.owner, t.repo, req)
	if err != nil {
		return "", fmt.Errorf("creating tracking issue: %w", err)
	}

	log.With("issue", issue.GetHTMLURL()).Info("Opened tracking issue for failed run")
	return issue.GetHTMLURL(), nil
}

// compose builds the tracking issue body: root cause, recorded issues,
// and a bounded diagnostic over recent run history. Read-only throughout.
func (t *Tracker) compose(ctx context.Context, m *Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run `%s` of agent `%s` failed with severity **%s**.\n\n", m.RunID, m.Agent, m.Severity)
	fmt.Fprintf(&sb, "- Event: `%s`", m.EventName)
	if m.Action != "" {
		fmt.Fprintf(&sb, " (`%s`)", m.Action)
	}
	fmt.Fprintf(&sb, "\n- Actor: `%s`\n- Started: %s\n\n", m.Actor, m.StartedAt.UTC().Format(time.RFC3339))

	if root := rootCause(m); root != nil {
		fmt.Fprintf(&sb, "### Root cause\n%s (%s)\n\n", root.Message, root.Category)
		fmt.Fprintf(&sb, "### Remediation\n%s\n\n", remediation(root.Category))
	}

	if len(m.Issues) > 0 {
		sb.WriteString("### Recorded issues\n")
		for _, issue := range m.Issues {
			fmt.Fprintf(&sb, "- [%s/%s] %s\n", issue.Category, issue.Severity, issue.Message)
		}
		sb.WriteString("\n")
	}

	// Bounded diagnostic: the last few runs show whether the failure is
	// new or a streak. Failure to read history is not itself a failure.
	if runs, err := t.runs.RecentRuns(ctx, m.Agent, 5); err == nil && len(runs) > 0 {
		sb.WriteString("### Recent runs\n")
		for _, run := range runs {
			fmt.Fprintf(&sb, "- %s at %s", run.Conclusion, run.CompletedAt.UTC().Format(time.RFC3339))
			if run.URL != "" {
				fmt.Fprintf(&sb, " (%s)", run.URL)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if t.summarizer != nil {
		sctx, cancel := context.WithTimeout(ctx, t.callTimeout)
		summary, err := t.summarizer.Summarize(sctx, sb.String())
		cancel()
		if err != nil {
			clog.FromContext(ctx).With("agent", m.Agent).With("error", err).Warn("Triage summary unavailable")
		} else {
			fmt.Fprintf(&sb, "### Triage\n%s\n", summary)
		}
	}

	return sb.String()
}

// rootCause picks the worst, earliest issue.
func rootCause(m *Manifest) *Issue {
	var root *Issue
	for i := range m.Issues {
		issue := &m.Issues[i]
		if root == nil || issue.Severity.Worse(root.Severity) {
			root = issue
		}
	}
	return root
}

func remediation(category string) string {
	switch category {
	case CategoryPreflight:
		return "Check that the AI-service credential and an automation token are configured for the repository."
	case CategoryDefinition:
		return "Fix the agent definition file; the loader error above names the file and field."
	case CategoryCollection:
		return "Check repository API access and the agent's context filters."
	case CategoryExecution:
		return "Inspect the execution step's logs for the run; the error above is its final report."
	case CategoryOutputs:
		return "The rejected intents above name the failing field or limit; adjust the agent's instructions or its output allowances."
	default:
		return "Inspect the recorded issues above."
	}
}
