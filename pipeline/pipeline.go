/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/audit"
	"chainguard.dev/dispatchaf/collector"
	"chainguard.dev/dispatchaf/event"
	"chainguard.dev/dispatchaf/gate"
	"chainguard.dev/dispatchaf/history"
	"chainguard.dev/dispatchaf/outputs"
	"chainguard.dev/dispatchaf/router"
	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Bridge hands one agent run to the external AI execution step. The step
// reads the handoff, does its work, and drops output-intent files into the
// intent directory; its returned record carries cost, turns, and duration.
type Bridge interface {
	Execute(ctx context.Context, h *Handoff) (*audit.ExecutionRecord, error)
}

// Handoff is everything the execution step gets for one agent run.
type Handoff struct {
	Agent          *agentspec.Definition
	Context        *event.DispatchContext
	Target         int
	EncodedContext string
	ContextText    string
	IntentDir      string
	ContractPath   string
}

// Reactor reacts to a finished manifest (e.g. opening a tracking issue on
// failure).
type Reactor interface {
	React(ctx context.Context, m *audit.Manifest, policy agentspec.AuditPolicy) (string, error)
}

// Pipeline wires the stage machine over the fact sources and collaborators.
type Pipeline struct {
	perms gate.PermissionSource
	runs  history.Source
	prs   gate.PullRequestSource
	deps  gate.DependencySource

	collector  *collector.Collector
	labels     outputs.LabelSource
	newApplier func(agent string) outputs.Applier
	bridge     Bridge

	reactor     Reactor
	progressFor func(agent string) *gate.Progress
	workDir     string
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReactor enables failure reactions (tracking issues).
func WithReactor(r Reactor) Option {
	return func(p *Pipeline) {
		p.reactor = r
	}
}

// WithProgress enables per-agent progress comments.
func WithProgress(fn func(agent string) *gate.Progress) Option {
	return func(p *Pipeline) {
		p.progressFor = fn
	}
}

// WithWorkDir sets where per-agent handoff artifacts (intent directories,
// output contracts) live. The default is the OS temp directory.
func WithWorkDir(dir string) Option {
	return func(p *Pipeline) {
		p.workDir = dir
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New assembles a Pipeline. The applier factory is per-agent because
// created pull requests carry the agent's attribution label.
func New(
	perms gate.PermissionSource,
	runs history.Source,
	prs gate.PullRequestSource,
	deps gate.DependencySource,
	coll *collector.Collector,
	labels outputs.LabelSource,
	newApplier func(agent string) outputs.Applier,
	bridge Bridge,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		perms:      perms,
		runs:       runs,
		prs:        prs,
		deps:       deps,
		collector:  coll,
		labels:     labels,
		newApplier: newApplier,
		bridge:     bridge,
		workDir:    os.TempDir(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run dispatches one event: routes it across the definitions, validates
// every candidate concurrently, and runs each passing agent through
// collection, execution, and output application. It returns one manifest
// per broken definition and per candidate; the audit stage always runs, so
// every manifest is finalized even when everything upstream failed.
func (p *Pipeline) Run(ctx context.Context, defs []*agentspec.Definition, broken []agentspec.LoadError, dc *event.DispatchContext) []*audit.Manifest {
	var manifests []*audit.Manifest

	// A definition that failed to load is excluded from routing, but the
	// failure is not silent: it gets its own failed manifest.
	for _, b := range broken {
		rep := audit.NewReporter(filepath.Base(b.Path), dc, audit.WithClock(p.now))
		rep.RecordCritical(audit.CategoryDefinition, b.Error(), nil)
		manifests = append(manifests, rep.Finalize())
	}

	candidates := router.Route(ctx, defs, dc)
	if len(candidates) == 0 {
		return manifests
	}

	// Validation gates for different agents run concurrently; each gate
	// only reads shared external state. Every goroutine owns its slot, so
	// there is no shared accumulator to guard.
	results := make([]*audit.Manifest, len(candidates))
	var group errgroup.Group
	for i, def := range candidates {
		group.Go(func() error {
			results[i] = p.runAgent(ctx, def, dc)
			return nil
		})
	}
	_ = group.Wait()

	return append(manifests, results...)
}

// runAgent takes one matched agent through the stage machine. Early exits
// skip the remaining stages but the reporter is always finalized, and the
// reactor (when configured) always sees the manifest.
func (p *Pipeline) runAgent(ctx context.Context, def *agentspec.Definition, dc *event.DispatchContext) *audit.Manifest {
	log := clog.FromContext(ctx).With("agent", def.Name)
	rep := audit.NewReporter(def.Name, dc, audit.WithClock(p.now))

	var progress *gate.Progress
	gateOpts := []gate.Option{gate.WithClock(p.now)}
	if p.progressFor != nil {
		progress = p.progressFor(def.Name)
		gateOpts = append(gateOpts, gate.WithProgress(progress, Stages))
	}

	// Validation.
	status, err := gate.New(p.perms, p.runs, p.prs, p.deps, gateOpts...).Validate(ctx, def, dc)
	if err != nil {
		rep.RecordFailure(audit.CategoryValidation, err.Error(), nil)
		return p.finish(ctx, rep, def, progress, StageValidation, gate.StageFailed)
	}
	rep.RecordValidation(status)
	if !status.Passed() {
		return p.finish(ctx, rep, def, progress, StageValidation, gate.StageSkipped)
	}
	p.updateProgress(ctx, progress, StageValidation, gate.StageCompleted)
	if ctx.Err() != nil {
		return p.finish(ctx, rep, def, progress, StageCollection, gate.StageSkipped)
	}

	// Context collection, for agents that request it. A threshold miss
	// skips the run before any execution cost.
	var contextText string
	if def.Context != nil {
		collected, err := p.collector.Collect(ctx, def)
		switch {
		case errors.Is(err, collector.ErrBelowThreshold):
			rep.RecordSkip(audit.CategoryCollection, err.Error())
			return p.finish(ctx, rep, def, progress, StageCollection, gate.StageSkipped)
		case err != nil:
			rep.RecordFailure(audit.CategoryCollection, err.Error(), nil)
			return p.finish(ctx, rep, def, progress, StageCollection, gate.StageFailed)
		}
		contextText = collector.Render(collected)
	}
	p.updateProgress(ctx, progress, StageCollection, gate.StageCompleted)
	if ctx.Err() != nil {
		return p.finish(ctx, rep, def, progress, StageExecution, gate.StageSkipped)
	}

	// Handoff and external execution.
	handoff, err := p.prepareHandoff(def, dc, status, contextText)
	if err != nil {
		rep.RecordFailure(audit.CategoryExecution, err.Error(), nil)
		return p.finish(ctx, rep, def, progress, StageExecution, gate.StageFailed)
	}
	record, err := p.bridge.Execute(ctx, handoff)
	if err != nil {
		rep.RecordExecution(&audit.ExecutionRecord{Error: err.Error()})
		return p.finish(ctx, rep, def, progress, StageExecution, gate.StageFailed)
	}
	rep.RecordExecution(record)
	p.updateProgress(ctx, progress, StageExecution, gate.StageCompleted)
	if ctx.Err() != nil {
		return p.finish(ctx, rep, def, progress, StageOutputs, gate.StageSkipped)
	}

	// Output application: the only stage that mutates the repository.
	files, err := outputs.ReadDir(handoff.IntentDir)
	if err != nil {
		rep.RecordFailure(audit.CategoryOutputs, err.Error(), nil)
		return p.finish(ctx, rep, def, progress, StageOutputs, gate.StageFailed)
	}
	executor := outputs.New(p.newApplier(def.Name), p.labels)
	rep.RecordOutputs(executor.Apply(ctx, files, def, status.Target))
	p.updateProgress(ctx, progress, StageOutputs, gate.StageCompleted)

	log.Info("Agent run complete")
	return p.finish(ctx, rep, def, progress, StageAudit, gate.StageCompleted)
}

// finish is the always-run audit stage: finalize the manifest, mark the
// progress comment, and let the reactor respond to failures.
func (p *Pipeline) finish(ctx context.Context, rep *audit.Reporter, def *agentspec.Definition, progress *gate.Progress, stage, stageStatus string) *audit.Manifest {
	m := rep.Finalize()

	if stage != StageAudit {
		p.updateProgress(ctx, progress, stage, stageStatus)
	}
	p.updateProgress(ctx, progress, StageAudit, gate.StageCompleted)

	if p.reactor != nil {
		if _, err := p.reactor.React(ctx, m, def.Audit); err != nil {
			clog.FromContext(ctx).With("agent", def.Name).With("error", err).Warn("Failed to react to manifest")
		}
	}
	return m
}

// prepareHandoff lays out the per-run artifacts the execution step reads:
// an empty intent directory and the output contract.
func (p *Pipeline) prepareHandoff(def *agentspec.Definition, dc *event.DispatchContext, status *gate.Status, contextText string) (*Handoff, error) {
	dir := filepath.Join(p.workDir, def.Name)
	intentDir := filepath.Join(dir, "outputs")
	if err := os.MkdirAll(intentDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating intent directory: %w", err)
	}
	contractPath := filepath.Join(dir, "contract.json")
	if err := outputs.WriteContract(contractPath, def.Outputs); err != nil {
		return nil, err
	}
	return &Handoff{
		Agent:          def,
		Context:        dc,
		Target:         status.Target,
		EncodedContext: status.EncodedContext,
		ContextText:    contextText,
		IntentDir:      intentDir,
		ContractPath:   contractPath,
	}, nil
}

func (p *Pipeline) updateProgress(ctx context.Context, progress *gate.Progress, stage, status string) {
	if progress == nil {
		return
	}
	if err := progress.Update(ctx, stage, status); err != nil {
		clog.FromContext(ctx).With("stage", stage).With("error", err).Warn("Failed to update progress comment")
	}
}
