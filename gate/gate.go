/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/event"
	"chainguard.dev/dispatchaf/history"
	"github.com/chainguard-dev/clog"
)

// PermissionSource provides live actor facts from the platform.
type PermissionSource interface {
	// RepoPermission returns the actor's repository permission level:
	// "admin", "maintain", "write", "triage", "read", or "none".
	RepoPermission(ctx context.Context, user string) (string, error)
	// OrgRole returns the actor's organization role ("admin", "member"),
	// or empty when the actor is not a member.
	OrgRole(ctx context.Context, user string) (string, error)
	// TeamMember reports whether the actor is an active member of the
	// named team.
	TeamMember(ctx context.Context, team, user string) (bool, error)
}

// PullRequestSource counts the open pull requests attributed to an agent.
type PullRequestSource interface {
	OpenCount(ctx context.Context, agent string) (int, error)
}

// DependencySource counts the open blocking issues of a target issue.
type DependencySource interface {
	OpenBlockers(ctx context.Context, number int) (int, error)
}

// ProgressCreator creates the visible progress comment seeded with every
// downstream stage in pending status.
type ProgressCreator interface {
	Create(ctx context.Context, target int, stages []string) (int64, error)
}

// Gate validates one (event, agent) pair against live platform facts.
type Gate struct {
	perms    PermissionSource
	runs     history.Source
	prs      PullRequestSource
	deps     DependencySource
	progress ProgressCreator
	stages   []string
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithProgress enables progress comment creation on a full pass, seeding
// the named downstream stages.
func WithProgress(p ProgressCreator, stages []string) Option {
	return func(g *Gate) {
		g.progress = p
		g.stages = stages
	}
}

// WithClock overrides the time source; tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a Gate over the given fact sources.
func New(perms PermissionSource, runs history.Source, prs PullRequestSource, deps DependencySource, opts ...Option) *Gate {
	g := &Gate{
		perms: perms,
		runs:  runs,
		prs:   prs,
		deps:  deps,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate runs the fixed check order, short-circuiting at the first
// failure. A Status with a SkipReason is an expected outcome; an error is
// an external-call failure.
//
// Order: loaded, not-a-bot, authorized, labels, rate limit, capacity,
// dependencies.
func (g *Gate) Validate(ctx context.Context, def *agentspec.Definition, dc *event.DispatchContext) (*Status, error) {
	log := clog.FromContext(ctx).With("agent", def.Name)
	status := &Status{Loaded: true}

	// Bot actors are rejected unless explicitly allowed, so an agent's own
	// actions cannot re-trigger agents.
	if isBot(dc.Actor) && !def.AllowBots {
		status.SkipReason = SkipActorIsBot
		log.With("actor", dc.Actor).Info("Skipping: actor is a bot")
		return status, nil
	}
	status.NotBot = true

	authorized, err := g.authorized(ctx, def, dc.Actor)
	if err != nil {
		return nil, fmt.Errorf("checking authorization for %s: %w", dc.Actor, err)
	}
	if !authorized {
		status.SkipReason = SkipNotAuthorized
		log.With("actor", dc.Actor).Info("Skipping: actor not authorized")
		return status, nil
	}
	status.Authorized = true

	if missing := g.missingLabels(def, dc); len(missing) > 0 {
		status.SkipReason = SkipMissingLabels(missing)
		log.With("missing", strings.Join(missing, ",")).Info("Skipping: required labels absent")
		return status, nil
	}
	status.LabelsOK = true

	limited, err := g.rateLimited(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}
	if limited {
		status.SkipReason = SkipRateLimited
		log.With("rate_limit_minutes", def.RateLimit()).Info("Skipping: rate limited")
		return status, nil
	}
	status.RateLimitOK = true

	if def.MaxOpenPRs > 0 {
		open, err := g.prs.OpenCount(ctx, def.Name)
		if err != nil {
			return nil, fmt.Errorf("counting open PRs: %w", err)
		}
		if open >= def.MaxOpenPRs {
			// Deliberately silent: no comment, no audit-visible warning.
			// Expected to self-resolve as the agent's PRs merge or close.
			status.SkipReason = SkipCapacityReached
			status.Silent = true
			log.With("open", open).With("max", def.MaxOpenPRs).Debug("Skipping: open PR capacity reached")
			return status, nil
		}
	}
	status.CapacityOK = true

	if def.CheckBlockingIssues && dc.Issue != nil {
		blockers, err := g.deps.OpenBlockers(ctx, dc.Issue.Number)
		if err != nil {
			return nil, fmt.Errorf("checking blocking issues: %w", err)
		}
		if blockers > 0 {
			status.SkipReason = SkipBlocked
			log.With("blockers", blockers).Info("Skipping: target issue has open blockers")
			return status, nil
		}
	}
	status.DependenciesOK = true

	if target, ok := dc.Target(); ok {
		status.Target = target
	}
	encoded, err := encodeContext(dc)
	if err != nil {
		return nil, fmt.Errorf("encoding dispatch context: %w", err)
	}
	status.EncodedContext = encoded

	if g.progress != nil && status.Target != 0 {
		id, err := g.progress.Create(ctx, status.Target, g.stages)
		if err != nil {
			// The comment is cosmetic; the run proceeds without it.
			log.With("error", err).Warn("Failed to create progress comment")
		} else {
			status.ProgressCommentID = id
		}
	}

	return status, nil
}

// authorized implements the authorization rule: an explicit actor
// allow-list or team allow-list passes on membership alone; with no
// allow-lists configured the actor needs write-or-better repository
// permission or organization adminship. Read-only access never passes.
func (g *Gate) authorized(ctx context.Context, def *agentspec.Definition, actor string) (bool, error) {
	if actor == "" {
		return false, nil
	}

	if len(def.AllowedActors) > 0 || len(def.AllowedTeams) > 0 {
		if slices.Contains(def.AllowedActors, actor) {
			return true, nil
		}
		for _, team := range def.AllowedTeams {
			ok, err := g.perms.TeamMember(ctx, team, actor)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	perm, err := g.perms.RepoPermission(ctx, actor)
	if err != nil {
		return false, err
	}
	switch perm {
	case "admin", "maintain", "write":
		return true, nil
	}

	role, err := g.perms.OrgRole(ctx, actor)
	if err != nil {
		return false, err
	}
	return role == "admin", nil
}

// missingLabels returns the required labels absent from the target. The
// label gate only applies to issue and pull request events.
func (g *Gate) missingLabels(def *agentspec.Definition, dc *event.DispatchContext) []string {
	if len(def.RequiredLabels) == 0 || !dc.TargetsIssueOrPR() {
		return nil
	}
	var present []string
	switch {
	case dc.Issue != nil:
		present = dc.Issue.Labels
	case dc.PullRequest != nil:
		present = dc.PullRequest.Labels
	}
	var missing []string
	for _, want := range def.RequiredLabels {
		if !slices.Contains(present, want) {
			missing = append(missing, want)
		}
	}
	return missing
}

// rateLimited reports whether a successful run of this agent completed
// within the rate-limit window of now, per most-recent-first run history.
func (g *Gate) rateLimited(ctx context.Context, def *agentspec.Definition) (bool, error) {
	last, ok, err := history.LastSuccess(ctx, g.runs, def.Name)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	window := time.Duration(def.RateLimit()) * time.Minute
	return g.now().Sub(last) < window, nil
}

func isBot(actor string) bool {
	return strings.HasSuffix(actor, "[bot]")
}

func encodeContext(dc *event.DispatchContext) (string, error) {
	raw, err := json.Marshal(dc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
