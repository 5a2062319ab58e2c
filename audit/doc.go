/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package audit aggregates every pipeline stage's record into one durable
// manifest per agent run. The reporter always runs, regardless of upstream
// outcome; it appends its own summary layer and never mutates earlier
// records. On failure it runs a bounded, read-only diagnostic pass and can
// open a tracking issue with root cause and remediation.
package audit
