/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"fmt"
	"strings"
)

// Skip reasons are machine-readable and stable; downstream reporting keys
// off them.
const (
	SkipActorIsBot      = "actor-is-bot"
	SkipNotAuthorized   = "not-authorized"
	SkipRateLimited     = "rate-limited"
	SkipCapacityReached = "capacity-reached"
	SkipBlocked         = "blocked-by-dependencies"
)

// SkipMissingLabels builds the skip reason for a label-gate failure, citing
// the labels that were absent.
func SkipMissingLabels(missing []string) string {
	return fmt.Sprintf("missing-labels: %s", strings.Join(missing, ","))
}

// Status is the terminal record of one agent's validation against one
// event. The booleans are ordered: a false value means the check failed or
// was never reached, and SkipReason is set for the first failure.
type Status struct {
	Loaded         bool `json:"loaded"`
	NotBot         bool `json:"not_a_bot"`
	Authorized     bool `json:"authorized"`
	LabelsOK       bool `json:"labels_ok"`
	RateLimitOK    bool `json:"rate_limit_ok"`
	CapacityOK     bool `json:"capacity_ok"`
	DependenciesOK bool `json:"dependencies_ok"`

	SkipReason string `json:"skip_reason,omitempty"`

	// Silent marks a skip that produces no comment and no audit-visible
	// warning. Only the capacity gate sets it; that check is expected to
	// self-resolve as the agent's PRs merge or close.
	Silent bool `json:"-"`

	// Target is the issue or PR number downstream stages act on; zero for
	// schedule, manual, and external dispatches.
	Target int `json:"target,omitempty"`

	// EncodedContext is the base64 JSON dispatch context handed to the
	// execution step.
	EncodedContext string `json:"encoded_context,omitempty"`

	// ProgressCommentID identifies the progress comment created on a full
	// pass, when progress comments are enabled.
	ProgressCommentID int64 `json:"progress_comment_id,omitempty"`
}

// Passed reports whether every check passed.
func (s *Status) Passed() bool {
	return s.Loaded && s.NotBot && s.Authorized && s.LabelsOK &&
		s.RateLimitOK && s.CapacityOK && s.DependenciesOK
}
