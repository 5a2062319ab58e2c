/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs

import (
	"context"
	"fmt"

	"chainguard.dev/dispatchaf/agentspec"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Result records the outcome of one intent file.
type Result struct {
	File               string               `json:"file"`
	Type               agentspec.OutputType `json:"type"`
	ValidationPassed   bool                 `json:"validation_passed"`
	ExecutionSucceeded bool                 `json:"execution_succeeded"`
	Detail             string               `json:"detail,omitempty"`
	Error              string               `json:"error,omitempty"`
}

// Executor validates and applies intent files against one agent's
// allow-list.
type Executor struct {
	applier Applier
	labels  LabelSource
}

// New creates an Executor.
func New(applier Applier, labels LabelSource) *Executor {
	return &Executor{applier: applier, labels: labels}
}

// Apply processes every intent file and returns one Result per file, in
// file order. Types execute as an isolated-failure parallel group: each
// output type runs independently, items within a type run one at a time in
// sequence order, and a failure in one item or type never aborts siblings.
func (e *Executor) Apply(ctx context.Context, files []File, def *agentspec.Definition, target int) []Result {
	log := clog.FromContext(ctx).With("agent", def.Name)
	results := make([]Result, len(files))

	env := &Env{Labels: e.labels, PathAllowlist: def.PathAllowlist}

	// First pass: allow-list and per-type count gating. Only the first
	// max-count files of each type (in file order) are attempted.
	counts := map[agentspec.OutputType]int{}
	attempt := make([]bool, len(files))
	for i, file := range files {
		results[i] = Result{File: file.Path, Type: file.Type}

		rule, declared := def.Outputs[file.Type]
		if !declared {
			results[i].Error = fmt.Sprintf("output type %q is not allowed for this agent", file.Type)
			continue
		}
		counts[file.Type]++
		if rule.Max > 0 && counts[file.Type] > rule.Max {
			results[i].Error = fmt.Sprintf("output type %q exceeds its limit of %d", file.Type, rule.Max)
			continue
		}
		attempt[i] = true
	}

	// Group attemptable files by type for the parallel phase. Each
	// goroutine owns disjoint result slots, so there is no shared mutable
	// accumulator to guard.
	byType := map[agentspec.OutputType][]int{}
	for i, ok := range attempt {
		if ok {
			byType[files[i].Type] = append(byType[files[i].Type], i)
		}
	}

	var group errgroup.Group
	for _, indices := range byType {
		group.Go(func() error {
			for _, i := range indices {
				e.applyOne(ctx, env, files[i], &results[i], target)
			}
			return nil
		})
	}
	// The goroutines never return errors; failures land in Result slots.
	_ = group.Wait()

	applied, failed := 0, 0
	for _, r := range results {
		switch {
		case r.ExecutionSucceeded:
			applied++
		case r.Error != "":
			failed++
		}
	}
	log.With("files", len(files)).With("applied", applied).With("failed", failed).Info("Applied output intents")
	return results
}

// applyOne decodes, validates, and executes a single intent, recording the
// outcome in the caller's result slot.
func (e *Executor) applyOne(ctx context.Context, env *Env, file File, result *Result, target int) {
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic applying %s: %v", file.Type, r)
		}
	}()

	intent, err := Decode(file.Type, file.Raw)
	if err != nil {
		result.Error = err.Error()
		return
	}
	if err := intent.Validate(ctx, env); err != nil {
		result.Error = err.Error()
		return
	}
	result.ValidationPassed = true

	detail, err := intent.Apply(ctx, e.applier, target)
	if err != nil {
		result.Error = err.Error()
		return
	}
	result.ExecutionSucceeded = true
	result.Detail = detail
}
