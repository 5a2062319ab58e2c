/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chainguard.dev/dispatchaf/gate"
	"chainguard.dev/dispatchaf/outputs"
)

// Severity ranks a run's failure summary.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Worse reports whether s ranks above other.
func (s Severity) Worse(other Severity) bool {
	return severityRank[s] > severityRank[other]
}

// Issue categories.
const (
	CategoryPreflight  = "preflight"
	CategoryDefinition = "definition"
	CategoryValidation = "validation"
	CategoryCollection = "collection"
	CategoryExecution  = "execution"
	CategoryOutputs    = "outputs"
)

// Issue is one immutable, timestamped audit entry. Entries are append-only:
// every skip and every failure yields exactly one, and nothing is silently
// dropped except the deliberately-silent capacity gate.
type Issue struct {
	Category  string            `json:"category"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ExecutionRecord captures what the external execution step reported.
type ExecutionRecord struct {
	CostUSD  float64       `json:"cost_usd,omitempty"`
	Turns    int           `json:"turns,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Manifest is the terminal, durable record of one agent run.
type Manifest struct {
	RunID      string `json:"run_id"`
	Agent      string `json:"agent"`
	EventName  string `json:"event_name"`
	Action     string `json:"action,omitempty"`
	Actor      string `json:"actor,omitempty"`
	Repository string `json:"repository"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Validation *gate.Status     `json:"validation,omitempty"`
	Execution  *ExecutionRecord `json:"execution,omitempty"`
	Outputs    []outputs.Result `json:"outputs,omitempty"`

	SkipReason string   `json:"skip_reason,omitempty"`
	Issues     []Issue  `json:"issues,omitempty"`
	Severity   Severity `json:"severity"`

	// Success is true for clean runs and for skips; only error and
	// critical severities fail the run.
	Success bool `json:"success"`
}

// WriteFile persists the manifest as JSON.
func (m *Manifest) WriteFile(path string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
