/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipeline orchestrates one triggering event end to end: routing,
// per-agent validation gates (run concurrently), context collection, the
// handoff to the external execution step, output application, and the
// audit reporter, which always runs.
//
// Stage ordering and short-circuiting are explicit: every stage produces a
// result, a skip ends the agent's run early, and the audit stage runs
// unconditionally no matter what happened upstream. Cancellation is
// coarse: once the surrounding context is done, in-flight platform calls
// may complete but no further stage starts.
package pipeline
