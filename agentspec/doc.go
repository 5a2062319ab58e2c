/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agentspec defines the agent definition data model and its loader.
//
// A definition declares what triggers an agent, who may trigger it, what
// repository data it is handed, and which bounded side effects it may
// request. Definitions are discovered fresh at the start of every run and
// are immutable afterwards; a definition that fails to parse or validate is
// excluded from routing without aborting the run.
package agentspec
