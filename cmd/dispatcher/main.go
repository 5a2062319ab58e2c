/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the agent dispatcher: a one-shot process that
// takes a single repository event, routes it across the declared agents,
// and runs each matched agent through validation, context collection,
// external execution, and sandboxed output application. It is designed to
// run as a CI job, reading the event from the platform-provided payload
// file and exiting once every manifest is written.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/audit"
	"chainguard.dev/dispatchaf/collector"
	"chainguard.dev/dispatchaf/event"
	"chainguard.dev/dispatchaf/gate"
	"chainguard.dev/dispatchaf/history"
	"chainguard.dev/dispatchaf/outputs"
	"chainguard.dev/dispatchaf/pipeline"
	"chainguard.dev/dispatchaf/preflight"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/sethvargo/go-envconfig"
)

type config struct {
	preflight.Credentials

	// AgentsDir is where agent definition files live.
	AgentsDir string `env:"AGENTS_DIR,default=.github/agents"`

	// Event identification, matching the conventions of the hosting CI
	// platform.
	EventName  string `env:"GITHUB_EVENT_NAME,required"`
	EventPath  string `env:"GITHUB_EVENT_PATH,required"`
	Repository string `env:"GITHUB_REPOSITORY,required"`
	Ref        string `env:"GITHUB_REF"`
	SHA        string `env:"GITHUB_SHA"`
	Actor      string `env:"GITHUB_ACTOR"`

	// AgentCommand is the execution-step subprocess; it reads the handoff
	// from AGENT_* environment variables.
	AgentCommand   string        `env:"AGENT_COMMAND,required"`
	AgentTimeout   time.Duration `env:"AGENT_TIMEOUT,default=20m"`
	WorkDir        string        `env:"DISPATCH_WORK_DIR"`
	ManifestDir    string        `env:"DISPATCH_MANIFEST_DIR"`
	ProgressEnable bool          `env:"DISPATCH_PROGRESS_COMMENTS,default=false"`

	// BaseBranch overrides the branch pull requests open against; when
	// unset the repository's default branch is resolved at apply time.
	BaseBranch string `env:"DISPATCH_BASE_BRANCH"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	id, err := preflight.Resolve(ctx, cfg.Credentials)
	if err != nil {
		clog.FatalContextf(ctx, "resolving identity: %v", err)
	}

	payload, err := os.ReadFile(cfg.EventPath)
	if err != nil {
		clog.FatalContextf(ctx, "reading event payload: %v", err)
	}
	dc, err := event.Normalize(event.Raw{
		Name:       cfg.EventName,
		Payload:    payload,
		Repository: cfg.Repository,
		Ref:        cfg.Ref,
		SHA:        cfg.SHA,
		Actor:      cfg.Actor,
	})
	if err != nil {
		clog.FatalContextf(ctx, "normalizing event: %v", err)
	}
	clog.InfoContextf(ctx, "Dispatching %s event for %s", dc.EventName, dc.Repository)

	defs, broken := agentspec.LoadDir(ctx, cfg.AgentsDir)
	if len(defs) == 0 && len(broken) == 0 {
		clog.InfoContext(ctx, "No agent definitions found, nothing to do")
		return
	}

	runs := history.NewGitHub(id.GitHub, dc.Owner, dc.Repo)
	facts := gate.NewGitHubFacts(id.GitHub, dc.Owner, dc.Repo)
	coll := collector.New(collector.NewGitHubSource(id.GitHub, dc.Owner, dc.Repo), runs)

	var applierOpts []outputs.ApplierOption
	if cfg.BaseBranch != "" {
		applierOpts = append(applierOpts, outputs.WithBaseBranch(cfg.BaseBranch))
	}
	newApplier := func(agent string) outputs.Applier {
		return outputs.NewGitHubApplier(id.GitHub, dc.Owner, dc.Repo, agent, applierOpts...)
	}
	// Label lookups are reads, so one agent-less applier serves them all.
	labels := outputs.NewGitHubApplier(id.GitHub, dc.Owner, dc.Repo, "")

	tracker := audit.NewTracker(id.GitHub, dc.Owner, dc.Repo, runs,
		audit.WithSummarizer(audit.NewAISummarizer(id.AI)))
	opts := []pipeline.Option{
		pipeline.WithReactor(tracker),
	}
	if cfg.WorkDir != "" {
		opts = append(opts, pipeline.WithWorkDir(cfg.WorkDir))
	}
	if cfg.ProgressEnable {
		opts = append(opts, pipeline.WithProgress(func(agent string) *gate.Progress {
			return gate.NewProgress(id.GitHub, dc.Owner, dc.Repo, agent)
		}))
	}

	p := pipeline.New(
		facts, runs, facts, facts,
		coll,
		labels,
		newApplier,
		newExecBridge(cfg.AgentCommand, cfg.AgentTimeout),
		opts...,
	)

	manifests := p.Run(ctx, defs, broken, dc)
	writeManifests(ctx, cfg.ManifestDir, manifests)

	failed := 0
	for _, m := range manifests {
		if !m.Success {
			failed++
		}
	}
	clog.InfoContextf(ctx, "Dispatch complete: %d manifests, %d failed", len(manifests), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// writeManifests persists each manifest as JSON when a manifest directory
// is configured. Persistence failures are logged, not fatal: the manifest
// content already drove the audit reaction.
func writeManifests(ctx context.Context, dir string, manifests []*audit.Manifest) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		clog.WarnContextf(ctx, "creating manifest directory: %v", err)
		return
	}
	for _, m := range manifests {
		path := filepath.Join(dir, m.Agent+"-"+m.RunID+".json")
		if err := m.WriteFile(path); err != nil {
			clog.WarnContextf(ctx, "writing manifest for %s: %v", m.Agent, err)
		}
	}
}
