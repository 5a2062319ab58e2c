/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package history exposes an agent's recent run history. The rate-limit
// gate and the "since last successful run" collection window both read it.
//
// Reads carry no transactional guarantee: two near-simultaneous triggers can
// both observe "no recent run" and both proceed. That race is accepted; the
// rate limit is best-effort debouncing, not mutual exclusion.
package history

import (
	"context"
	"time"
)

// Run is one prior run of an agent, as recorded by the platform.
type Run struct {
	Agent       string    `json:"agent"`
	Conclusion  string    `json:"conclusion"` // "success", "failure", "cancelled", ...
	CompletedAt time.Time `json:"completed_at"`
	URL         string    `json:"url,omitempty"`
}

// Source provides recent runs for an agent, most recent first.
type Source interface {
	RecentRuns(ctx context.Context, agent string, limit int) ([]Run, error)
}

// LastSuccess returns the completion time of the agent's most recent
// successful run, if any.
func LastSuccess(ctx context.Context, src Source, agent string) (time.Time, bool, error) {
	runs, err := src.RecentRuns(ctx, agent, 20)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, run := range runs {
		if run.Conclusion == "success" {
			return run.CompletedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}
