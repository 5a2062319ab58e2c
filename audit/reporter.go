/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package audit

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"chainguard.dev/dispatchaf/event"
	"chainguard.dev/dispatchaf/gate"
	"chainguard.dev/dispatchaf/outputs"
)

// Reporter builds one Manifest incrementally as stages complete. It is
// used by a single goroutine; per-agent pipelines each own their reporter.
type Reporter struct {
	manifest *Manifest
	now      func() time.Time
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		r.now = now
	}
}

// NewReporter starts a manifest for one agent run.
func NewReporter(agent string, dc *event.DispatchContext, opts ...ReporterOption) *Reporter {
	r := &Reporter{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.manifest = &Manifest{
		RunID:      newRunID(),
		Agent:      agent,
		EventName:  dc.EventName,
		Action:     dc.Action,
		Actor:      dc.Actor,
		Repository: dc.Repository,
		StartedAt:  r.now(),
		Severity:   SeverityNone,
	}
	return r
}

// RecordValidation attaches the gate's terminal status. Non-silent skips
// get exactly one warning entry; silent skips (capacity) get none.
func (r *Reporter) RecordValidation(status *gate.Status) {
	r.manifest.Validation = status
	if status.SkipReason == "" {
		return
	}
	r.manifest.SkipReason = status.SkipReason
	if status.Silent {
		return
	}
	r.append(Issue{
		Category: CategoryValidation,
		Severity: SeverityWarning,
		Message:  status.SkipReason,
	})
}

// RecordSkip records a non-validation skip (e.g. collection threshold).
func (r *Reporter) RecordSkip(category, reason string) {
	r.manifest.SkipReason = reason
	r.append(Issue{
		Category: category,
		Severity: SeverityWarning,
		Message:  reason,
	})
}

// RecordFailure records a stage failure at error severity.
func (r *Reporter) RecordFailure(category, message string, context map[string]string) {
	r.append(Issue{
		Category: category,
		Severity: SeverityError,
		Message:  message,
		Context:  context,
	})
}

// RecordCritical records a failure that invalidates the whole run: an
// unloadable definition, a failed preflight, or a failed execution step.
func (r *Reporter) RecordCritical(category, message string, context map[string]string) {
	r.append(Issue{
		Category: category,
		Severity: SeverityCritical,
		Message:  message,
		Context:  context,
	})
}

// RecordExecution attaches what the execution step reported.
func (r *Reporter) RecordExecution(rec *ExecutionRecord) {
	r.manifest.Execution = rec
	if rec != nil && rec.Error != "" {
		r.append(Issue{
			Category: CategoryExecution,
			Severity: SeverityCritical,
			Message:  rec.Error,
		})
	}
}

// RecordOutputs attaches per-output results and one error entry per failed
// item; failures are isolated, so siblings keep their own entries.
func (r *Reporter) RecordOutputs(results []outputs.Result) {
	r.manifest.Outputs = results
	for _, result := range results {
		if result.Error == "" {
			continue
		}
		r.append(Issue{
			Category: CategoryOutputs,
			Severity: SeverityError,
			Message:  result.Error,
			Context: map[string]string{
				"file": result.File,
				"type": string(result.Type),
			},
		})
	}
}

// Finalize derives the failure summary and closes the manifest. The
// manifest is the durable record of the run; callers persist it with
// WriteFile.
func (r *Reporter) Finalize() *Manifest {
	m := r.manifest
	m.FinishedAt = r.now()
	for _, issue := range m.Issues {
		if issue.Severity.Worse(m.Severity) {
			m.Severity = issue.Severity
		}
	}
	m.Success = !m.Severity.Worse(SeverityWarning)
	return m
}

func (r *Reporter) append(issue Issue) {
	issue.Timestamp = r.now()
	r.manifest.Issues = append(r.manifest.Issues, issue)
}

func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "run-unknown"
	}
	return hex.EncodeToString(b[:])
}
