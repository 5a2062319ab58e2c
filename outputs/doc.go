/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package outputs validates and applies the bounded side effects an agent
// run requested. Intent files are untrusted input: each declared type must
// be in the agent's allow-list and under its per-type count, each payload
// must satisfy that type's schema, and file-modifying payloads must stay
// within the path allow-list. Shape-valid items execute independently, so
// one item's failure never blocks or suppresses reporting of its siblings.
//
// This package is the pipeline's primary safety boundary: nothing else in
// the system mutates the repository.
package outputs
