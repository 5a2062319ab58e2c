/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gate decides whether one matched agent is authorized to run right
// now. Checks run in a fixed order and short-circuit on the first failure;
// almost every failure is a skip (an expected outcome, reported as success
// with a machine-readable reason), not an error. Only external-call
// failures are errors.
//
// Gates for different agents run concurrently: each reads shared external
// state (permissions, run history) and never mutates in-process shared
// state, so no locking is needed between them.
package gate
