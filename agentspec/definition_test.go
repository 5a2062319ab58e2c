/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentspec_test

import (
	"strings"
	"testing"

	"chainguard.dev/dispatchaf/agentspec"
)

func validDefinition() *agentspec.Definition {
	return &agentspec.Definition{
		Name: "triage",
		On: agentspec.Triggers{
			Issues: &agentspec.EventFilter{Types: []string{"opened"}},
		},
		Permissions: []string{"issues: write"},
		Outputs: map[agentspec.OutputType]agentspec.OutputRule{
			agentspec.OutputAddComment: {},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*agentspec.Definition)
		wantErr string
	}{{
		name:   "valid",
		mutate: func(*agentspec.Definition) {},
	}, {
		name: "missing name",
		mutate: func(d *agentspec.Definition) {
			d.Name = ""
		},
		wantErr: "no name",
	}, {
		name: "no trigger",
		mutate: func(d *agentspec.Definition) {
			d.On = agentspec.Triggers{}
		},
		wantErr: "declares no trigger",
	}, {
		name: "unknown output type",
		mutate: func(d *agentspec.Definition) {
			d.Outputs[agentspec.OutputType("delete-repo")] = agentspec.OutputRule{}
		},
		wantErr: "unknown output type",
	}, {
		name: "output without required permission",
		mutate: func(d *agentspec.Definition) {
			d.Permissions = nil
		},
		wantErr: `requires permission "issues: write"`,
	}, {
		name: "file-modifying output without path allow-list",
		mutate: func(d *agentspec.Definition) {
			d.Permissions = []string{"issues: write", "contents: write", "pull-requests: write"}
			d.Outputs[agentspec.OutputCreatePullRequest] = agentspec.OutputRule{Max: 1}
		},
		wantErr: "no path allow-list",
	}, {
		name: "file-modifying output with allow-list",
		mutate: func(d *agentspec.Definition) {
			d.Permissions = []string{"issues: write", "contents: write", "pull-requests: write"}
			d.Outputs[agentspec.OutputCreatePullRequest] = agentspec.OutputRule{Max: 1}
			d.PathAllowlist = []string{"docs/**"}
		},
	}, {
		name: "negative output max",
		mutate: func(d *agentspec.Definition) {
			d.Outputs[agentspec.OutputAddComment] = agentspec.OutputRule{Max: -1}
		},
		wantErr: "negative max",
	}, {
		name: "negative rate limit",
		mutate: func(d *agentspec.Definition) {
			d.RateLimitMinutes = -1
		},
		wantErr: "negative rate_limit_minutes",
	}, {
		name: "invalid context window",
		mutate: func(d *agentspec.Definition) {
			d.Context = &agentspec.ContextSpec{Window: "fortnight"}
		},
		wantErr: "invalid context window",
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			def := validDefinition()
			tc.mutate(def)
			err := def.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestRateLimitDefault(t *testing.T) {
	t.Parallel()
	def := validDefinition()
	if got := def.RateLimit(); got != agentspec.DefaultRateLimitMinutes {
		t.Fatalf("expected default rate limit %d, got %d", agentspec.DefaultRateLimitMinutes, got)
	}
	def.RateLimitMinutes = 10
	if got := def.RateLimit(); got != 10 {
		t.Fatalf("expected rate limit 10, got %d", got)
	}
}

func TestTriggersMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		triggers agentspec.Triggers
		event    string
		action   string
		want     bool
	}{{
		name:     "declared family and action",
		triggers: agentspec.Triggers{Issues: &agentspec.EventFilter{Types: []string{"opened", "labeled"}}},
		event:    "issues",
		action:   "labeled",
		want:     true,
	}, {
		name:     "declared family, filtered-out action",
		triggers: agentspec.Triggers{Issues: &agentspec.EventFilter{Types: []string{"opened"}}},
		event:    "issues",
		action:   "closed",
		want:     false,
	}, {
		name:     "empty filter matches every action",
		triggers: agentspec.Triggers{PullRequests: &agentspec.EventFilter{}},
		event:    "pull_request",
		action:   "synchronize",
		want:     true,
	}, {
		name:     "undeclared family",
		triggers: agentspec.Triggers{Issues: &agentspec.EventFilter{}},
		event:    "pull_request",
		action:   "opened",
		want:     false,
	}, {
		name:     "schedule",
		triggers: agentspec.Triggers{Schedules: []string{"0 9 * * 1"}},
		event:    "schedule",
		want:     true,
	}, {
		name:     "manual dispatch",
		triggers: agentspec.Triggers{Manual: true},
		event:    "workflow_dispatch",
		want:     true,
	}, {
		name:     "external dispatch with type filter",
		triggers: agentspec.Triggers{External: &agentspec.ExternalFilter{Types: []string{"deploy"}}},
		event:    "repository_dispatch",
		action:   "deploy",
		want:     true,
	}, {
		name:     "external dispatch type mismatch",
		triggers: agentspec.Triggers{External: &agentspec.ExternalFilter{Types: []string{"deploy"}}},
		event:    "repository_dispatch",
		action:   "rollback",
		want:     false,
	}, {
		name:     "unknown event name",
		triggers: agentspec.Triggers{Issues: &agentspec.EventFilter{}},
		event:    "push",
		want:     false,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.triggers.Matches(tc.event, tc.action); got != tc.want {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tc.event, tc.action, got, tc.want)
			}
		})
	}
}
