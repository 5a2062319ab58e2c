/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
)

// Stage statuses rendered in the progress comment.
const (
	StagePending   = "pending"
	StageRunning   = "running"
	StageCompleted = "completed"
	StageSkipped   = "skipped"
	StageFailed    = "failed"
)

var stageMarkers = map[string]string{
	StagePending:   "⬜",
	StageRunning:   "🔄",
	StageCompleted: "✅",
	StageSkipped:   "⏭️",
	StageFailed:    "❌",
}

// Progress maintains one visible comment on the target issue or PR,
// seeded with every downstream stage in pending status and updated in
// place as stages complete.
type Progress struct {
	client      *github.Client
	owner, repo string
	agent       string
	callTimeout time.Duration

	commentID int64
	stages    []string
	statuses  map[string]string
}

// NewProgress creates a progress comment manager for one agent run.
func NewProgress(client *github.Client, owner, repo, agent string) *Progress {
	return &Progress{
		client:      client,
		owner:       owner,
		repo:        repo,
		agent:       agent,
		callTimeout: 30 * time.Second,
		statuses:    map[string]string{},
	}
}

// Create posts the initial comment with all stages pending and remembers
// the comment for in-place updates.
func (p *Progress) Create(ctx context.Context, target int, stages []string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	p.stages = stages
	for _, stage := range stages {
		p.statuses[stage] = StagePending
	}

	comment, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, target, &github.IssueComment{
		Body: github.Ptr(p.render()),
	})
	if err != nil {
		return 0, fmt.Errorf("creating progress comment: %w", err)
	}
	p.commentID = comment.GetID()
	return p.commentID, nil
}

// Update sets one stage's status and rewrites the comment. Updating before
// Create succeeded is a no-op.
func (p *Progress) Update(ctx context.Context, stage, status string) error {
	if p.commentID == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	p.statuses[stage] = status
	_, _, err := p.client.Issues.EditComment(ctx, p.owner, p.repo, p.commentID, &github.IssueComment{
		Body: github.Ptr(p.render()),
	})
	if err != nil {
		return fmt.Errorf("updating progress comment: %w", err)
	}
	return nil
}

func (p *Progress) render() string {
	return RenderProgress(p.agent, p.stages, p.statuses)
}

// RenderProgress renders the progress comment body.
func RenderProgress(agent string, stages []string, statuses map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Agent `%s` run\n\n", agent)
	for _, stage := range stages {
		status := statuses[stage]
		if status == "" {
			status = StagePending
		}
		marker, ok := stageMarkers[status]
		if !ok {
			marker = stageMarkers[StagePending]
		}
		fmt.Fprintf(&sb, "- %s %s: %s\n", marker, stage, status)
	}
	return sb.String()
}
