/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentspec

import (
	"errors"
	"fmt"
)

// DefaultRateLimitMinutes is applied when a definition does not set
// rate_limit_minutes.
const DefaultRateLimitMinutes = 5

// OutputType names one bounded side effect an agent may request.
type OutputType string

const (
	OutputAddComment        OutputType = "add-comment"
	OutputAddLabels         OutputType = "add-labels"
	OutputCreateIssue       OutputType = "create-issue"
	OutputUpdateIssue       OutputType = "update-issue"
	OutputCreatePullRequest OutputType = "create-pull-request"
	OutputMissingTool       OutputType = "missing-tool"
)

// outputRequirements captures what a definition must grant for an output
// type to be usable. File-modifying types additionally require a non-empty
// path allow-list.
type outputRequirements struct {
	permissions   []string
	fileModifying bool
}

var knownOutputs = map[OutputType]outputRequirements{
	OutputAddComment:        {permissions: []string{"issues: write"}},
	OutputAddLabels:         {permissions: []string{"issues: write"}},
	OutputCreateIssue:       {permissions: []string{"issues: write"}},
	OutputUpdateIssue:       {permissions: []string{"issues: write"}},
	OutputCreatePullRequest: {permissions: []string{"contents: write", "pull-requests: write"}, fileModifying: true},
	OutputMissingTool:       {}, // audit-only, never touches the repository
}

// KnownOutputTypes reports whether t is a member of the closed output set.
func KnownOutputTypes(t OutputType) bool {
	_, ok := knownOutputs[t]
	return ok
}

// FileModifying reports whether t writes repository file content and is
// therefore subject to the path allow-list.
func FileModifying(t OutputType) bool {
	return knownOutputs[t].fileModifying
}

// OutputRule bounds how an agent may use one output type.
type OutputRule struct {
	// Max caps how many intents of this type a single run may apply.
	// Zero means unlimited.
	Max int `yaml:"max,omitempty" json:"max,omitempty"`
	// Signed requires commits produced by this output type to carry a
	// verified signature. It is surfaced to the execution step through
	// the output contract; commits the applier itself creates go through
	// the Git Data API, which the platform signs.
	Signed bool `yaml:"signed,omitempty" json:"signed,omitempty"`
}

// EventFilter narrows an event family to particular actions.
// An empty Types list matches every action of the family.
type EventFilter struct {
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// ExternalFilter narrows external dispatches to particular payload types.
type ExternalFilter struct {
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// Triggers declares the event families an agent listens for.
type Triggers struct {
	Issues       *EventFilter    `yaml:"issues,omitempty" json:"issues,omitempty"`
	PullRequests *EventFilter    `yaml:"pull_request,omitempty" json:"pull_request,omitempty"`
	Discussions  *EventFilter    `yaml:"discussion,omitempty" json:"discussion,omitempty"`
	Schedules    []string        `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Manual       bool            `yaml:"workflow_dispatch,omitempty" json:"workflow_dispatch,omitempty"`
	External     *ExternalFilter `yaml:"repository_dispatch,omitempty" json:"repository_dispatch,omitempty"`
}

// Empty reports whether no trigger is declared at all.
func (t Triggers) Empty() bool {
	return t.Issues == nil && t.PullRequests == nil && t.Discussions == nil &&
		len(t.Schedules) == 0 && !t.Manual && t.External == nil
}

// Matches reports whether an event name and action satisfy the trigger
// declaration: the event family must be declared, and either no action
// filter is set or the action is in the filter list.
func (t Triggers) Matches(event, action string) bool {
	filterFor := func(f *EventFilter) bool {
		if f == nil {
			return false
		}
		if len(f.Types) == 0 {
			return true
		}
		for _, typ := range f.Types {
			if typ == action {
				return true
			}
		}
		return false
	}

	switch event {
	case "issues":
		return filterFor(t.Issues)
	case "pull_request":
		return filterFor(t.PullRequests)
	case "discussion":
		return filterFor(t.Discussions)
	case "schedule":
		return len(t.Schedules) > 0
	case "workflow_dispatch":
		return t.Manual
	case "repository_dispatch":
		if t.External == nil {
			return false
		}
		if len(t.External.Types) == 0 {
			return true
		}
		for _, typ := range t.External.Types {
			if typ == action {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ResourceFilter narrows one collected resource type.
type ResourceFilter struct {
	State  string   `yaml:"state,omitempty" json:"state,omitempty"`
	Labels []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Author string   `yaml:"author,omitempty" json:"author,omitempty"`
}

// ContextSpec declares what repository data is collected for the agent
// before execution. A nil ContextSpec on the definition disables collection
// entirely.
type ContextSpec struct {
	Issues       *ResourceFilter `yaml:"issues,omitempty" json:"issues,omitempty"`
	PullRequests *ResourceFilter `yaml:"pull_requests,omitempty" json:"pull_requests,omitempty"`
	Discussions  *ResourceFilter `yaml:"discussions,omitempty" json:"discussions,omitempty"`
	Commits      *ResourceFilter `yaml:"commits,omitempty" json:"commits,omitempty"`
	Releases     *ResourceFilter `yaml:"releases,omitempty" json:"releases,omitempty"`
	WorkflowRuns *ResourceFilter `yaml:"workflow_runs,omitempty" json:"workflow_runs,omitempty"`
	Stats        bool            `yaml:"stats,omitempty" json:"stats,omitempty"`

	// Window bounds collection to items updated within a Go duration of
	// now (e.g. "168h"). Empty means "since the agent's last successful
	// run", falling back to the default window when there is none.
	Window string `yaml:"window,omitempty" json:"window,omitempty"`

	// MinItems skips the run when fewer items were collected in total.
	// Zero means the default of 1.
	MinItems int `yaml:"min_items,omitempty" json:"min_items,omitempty"`

	// MaxItemsPerType caps each resource type. Zero means the default of 50.
	MaxItemsPerType int `yaml:"max_items,omitempty" json:"max_items,omitempty"`
}

// AuditPolicy configures how run failures are surfaced.
type AuditPolicy struct {
	// CreateIssue opens a tracking issue when a run fails.
	CreateIssue bool     `yaml:"create_issue,omitempty" json:"create_issue,omitempty"`
	Labels      []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Assignees   []string `yaml:"assignees,omitempty" json:"assignees,omitempty"`
}

// Definition is one declarative agent: triggers, gates, context collection,
// allowed outputs, and audit policy. Instances are immutable once loaded.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Prompt is the instruction body handed verbatim to the execution
	// step. The dispatcher never interprets it.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	On Triggers `yaml:"on" json:"on"`

	// Permissions are the grants the compiled job runs with, in
	// "scope: level" form (e.g. "issues: write").
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// Outputs is the allow-list of side effects the agent may request.
	Outputs map[OutputType]OutputRule `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// PathAllowlist bounds file-modifying outputs to matching paths.
	PathAllowlist []string `yaml:"path_allowlist,omitempty" json:"path_allowlist,omitempty"`

	AllowedActors []string `yaml:"allowed_actors,omitempty" json:"allowed_actors,omitempty"`
	AllowedTeams  []string `yaml:"allowed_teams,omitempty" json:"allowed_teams,omitempty"`
	AllowBots     bool     `yaml:"allow_bots,omitempty" json:"allow_bots,omitempty"`

	RequiredLabels []string `yaml:"required_labels,omitempty" json:"required_labels,omitempty"`

	RateLimitMinutes int `yaml:"rate_limit_minutes,omitempty" json:"rate_limit_minutes,omitempty"`

	// MaxOpenPRs bounds concurrent open PRs attributed to this agent.
	// Zero disables the capacity gate.
	MaxOpenPRs int `yaml:"max_open_prs,omitempty" json:"max_open_prs,omitempty"`

	// CheckBlockingIssues skips the run while the target issue has open
	// blocking dependencies.
	CheckBlockingIssues bool `yaml:"check_blocking_issues,omitempty" json:"check_blocking_issues,omitempty"`

	Context *ContextSpec `yaml:"context,omitempty" json:"context,omitempty"`

	Audit AuditPolicy `yaml:"audit,omitempty" json:"audit,omitempty"`
}

// HasPermission reports whether the definition grants the given
// "scope: level" permission.
func (d *Definition) HasPermission(grant string) bool {
	for _, p := range d.Permissions {
		if p == grant {
			return true
		}
	}
	return false
}

// RateLimit returns the effective rate limit, applying the default.
func (d *Definition) RateLimit() int {
	if d.RateLimitMinutes <= 0 {
		return DefaultRateLimitMinutes
	}
	return d.RateLimitMinutes
}

// Validate checks the definition invariants. It is called by the loader;
// definitions that fail validation never reach the router.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("definition has no name")
	}
	if d.On.Empty() {
		return fmt.Errorf("agent %q declares no trigger", d.Name)
	}
	for typ, rule := range d.Outputs {
		req, ok := knownOutputs[typ]
		if !ok {
			return fmt.Errorf("agent %q allows unknown output type %q", d.Name, typ)
		}
		if rule.Max < 0 {
			return fmt.Errorf("agent %q output %q has negative max", d.Name, typ)
		}
		for _, grant := range req.permissions {
			if !d.HasPermission(grant) {
				return fmt.Errorf("agent %q output %q requires permission %q", d.Name, typ, grant)
			}
		}
		if req.fileModifying && len(d.PathAllowlist) == 0 {
			return fmt.Errorf("agent %q output %q modifies files but no path allow-list is set", d.Name, typ)
		}
	}
	if d.RateLimitMinutes < 0 {
		return fmt.Errorf("agent %q has negative rate_limit_minutes", d.Name)
	}
	if d.MaxOpenPRs < 0 {
		return fmt.Errorf("agent %q has negative max_open_prs", d.Name)
	}
	if d.Context != nil {
		if d.Context.MinItems < 0 {
			return fmt.Errorf("agent %q has negative context min_items", d.Name)
		}
		if d.Context.Window != "" {
			if _, err := ParseWindow(d.Context.Window); err != nil {
				return fmt.Errorf("agent %q has invalid context window: %w", d.Name, err)
			}
		}
	}
	return nil
}
