/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package collector gathers the repository data an agent's context block
// requests: typed per-resource filters, a time window, and per-type caps.
// When the total collected item count falls below the configured minimum
// the whole run is skipped before any execution cost is incurred.
package collector
