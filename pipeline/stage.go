/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

// Stage names, in execution order. They seed the progress comment and key
// its in-place updates.
const (
	StageValidation = "validation"
	StageCollection = "context-collection"
	StageExecution  = "agent-execution"
	StageOutputs    = "output-execution"
	StageAudit      = "audit"
)

// Stages lists every stage in order.
var Stages = []string{StageValidation, StageCollection, StageExecution, StageOutputs, StageAudit}
