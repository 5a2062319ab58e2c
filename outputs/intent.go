/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"chainguard.dev/dispatchaf/agentspec"
)

// LabelSource answers whether a label exists in the repository; the
// add-labels schema requires every label to exist.
type LabelSource interface {
	LabelExists(ctx context.Context, name string) (bool, error)
}

// Env is the validation environment: live repository facts plus the
// agent's path allow-list for file-modifying intents.
type Env struct {
	Labels        LabelSource
	PathAllowlist []string
}

// Applier performs the actual repository mutations. The pipeline's GitHub
// implementation is the only writer in the system.
type Applier interface {
	CreateComment(ctx context.Context, number int, body string) (string, error)
	AddLabels(ctx context.Context, number int, labels []string) (string, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (string, error)
	UpdateIssue(ctx context.Context, number int, title, body, state *string) (string, error)
	CreatePullRequest(ctx context.Context, pr *CreatePullRequest) (string, error)
}

// Intent is one decoded output-intent. The set of implementations is
// closed: decoding dispatches over the declared type, each variant owns its
// schema checks and its execution.
type Intent interface {
	Type() agentspec.OutputType
	Validate(ctx context.Context, env *Env) error
	Apply(ctx context.Context, app Applier, target int) (string, error)
}

// Decode parses a raw intent payload as the declared type. Unknown types
// are a validation failure, never a crash.
func Decode(typ agentspec.OutputType, raw []byte) (Intent, error) {
	var intent Intent
	switch typ {
	case agentspec.OutputAddComment:
		intent = &AddComment{}
	case agentspec.OutputAddLabels:
		intent = &AddLabels{}
	case agentspec.OutputCreateIssue:
		intent = &CreateIssue{}
	case agentspec.OutputUpdateIssue:
		intent = &UpdateIssue{}
	case agentspec.OutputCreatePullRequest:
		intent = &CreatePullRequest{}
	case agentspec.OutputMissingTool:
		intent = &MissingTool{}
	default:
		return nil, fmt.Errorf("unknown output type %q", typ)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(intent); err != nil {
		return nil, fmt.Errorf("decoding %s intent: %w", typ, err)
	}
	return intent, nil
}

// AddComment posts a comment on the triggering issue or pull request.
type AddComment struct {
	Body string `json:"body" jsonschema:"required,description=Comment body in Markdown"`
}

func (*AddComment) Type() agentspec.OutputType { return agentspec.OutputAddComment }

func (a *AddComment) Validate(context.Context, *Env) error {
	if strings.TrimSpace(a.Body) == "" {
		return errors.New("body is required")
	}
	return nil
}

func (a *AddComment) Apply(ctx context.Context, app Applier, target int) (string, error) {
	if target == 0 {
		return "", errors.New("no target issue or pull request")
	}
	return app.CreateComment(ctx, target, a.Body)
}

// AddLabels adds existing repository labels to the triggering issue or
// pull request.
type AddLabels struct {
	Labels []string `json:"labels" jsonschema:"required,description=Labels to add; each must already exist in the repository"`
}

func (*AddLabels) Type() agentspec.OutputType { return agentspec.OutputAddLabels }

func (a *AddLabels) Validate(ctx context.Context, env *Env) error {
	if len(a.Labels) == 0 {
		return errors.New("labels is required")
	}
	for _, label := range a.Labels {
		exists, err := env.Labels.LabelExists(ctx, label)
		if err != nil {
			return fmt.Errorf("checking label %q: %w", label, err)
		}
		if !exists {
			return fmt.Errorf("label %q does not exist in the repository", label)
		}
	}
	return nil
}

func (a *AddLabels) Apply(ctx context.Context, app Applier, target int) (string, error) {
	if target == 0 {
		return "", errors.New("no target issue or pull request")
	}
	return app.AddLabels(ctx, target, a.Labels)
}

// CreateIssue opens a new issue.
type CreateIssue struct {
	Title  string   `json:"title" jsonschema:"required,description=Issue title"`
	Body   string   `json:"body,omitempty" jsonschema:"description=Issue body in Markdown"`
	Labels []string `json:"labels,omitempty" jsonschema:"description=Labels to apply; each must already exist"`
}

func (*CreateIssue) Type() agentspec.OutputType { return agentspec.OutputCreateIssue }

func (c *CreateIssue) Validate(ctx context.Context, env *Env) error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	for _, label := range c.Labels {
		exists, err := env.Labels.LabelExists(ctx, label)
		if err != nil {
			return fmt.Errorf("checking label %q: %w", label, err)
		}
		if !exists {
			return fmt.Errorf("label %q does not exist in the repository", label)
		}
	}
	return nil
}

func (c *CreateIssue) Apply(ctx context.Context, app Applier, _ int) (string, error) {
	return app.CreateIssue(ctx, c.Title, c.Body, c.Labels)
}

// UpdateIssue edits the triggering issue's title, body, or state.
type UpdateIssue struct {
	Title *string `json:"title,omitempty" jsonschema:"description=New title"`
	Body  *string `json:"body,omitempty" jsonschema:"description=New body"`
	State *string `json:"state,omitempty" jsonschema:"description=New state; open or closed"`
}

func (*UpdateIssue) Type() agentspec.OutputType { return agentspec.OutputUpdateIssue }

func (u *UpdateIssue) Validate(context.Context, *Env) error {
	if u.Title == nil && u.Body == nil && u.State == nil {
		return errors.New("at least one of title, body, state is required")
	}
	if u.State != nil && *u.State != "open" && *u.State != "closed" {
		return fmt.Errorf("state must be open or closed, got %q", *u.State)
	}
	return nil
}

func (u *UpdateIssue) Apply(ctx context.Context, app Applier, target int) (string, error) {
	if target == 0 {
		return "", errors.New("no target issue")
	}
	return app.UpdateIssue(ctx, target, u.Title, u.Body, u.State)
}

// FileChange is one file written by a create-pull-request intent.
type FileChange struct {
	Path    string `json:"path" jsonschema:"required,description=Repository-relative file path"`
	Content string `json:"content" jsonschema:"required,description=Full new file content"`
}

// CreatePullRequest opens a pull request carrying the given file changes.
// It is the only file-modifying output type, so every path must match the
// agent's path allow-list.
type CreatePullRequest struct {
	Title  string       `json:"title" jsonschema:"required,description=Pull request title"`
	Body   string       `json:"body,omitempty" jsonschema:"description=Pull request body in Markdown"`
	Branch string       `json:"branch" jsonschema:"required,description=Head branch name to create"`
	Files  []FileChange `json:"files" jsonschema:"required,description=Files to write on the branch"`
}

func (*CreatePullRequest) Type() agentspec.OutputType { return agentspec.OutputCreatePullRequest }

func (c *CreatePullRequest) Validate(_ context.Context, env *Env) error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(c.Branch) == "" {
		return errors.New("branch is required")
	}
	if len(c.Files) == 0 {
		return errors.New("at least one file change is required")
	}
	for _, file := range c.Files {
		if file.Path == "" {
			return errors.New("file path is required")
		}
		if strings.Contains(file.Path, "..") || strings.HasPrefix(file.Path, "/") {
			return fmt.Errorf("file path %q escapes the repository", file.Path)
		}
		if !pathAllowed(env.PathAllowlist, file.Path) {
			return fmt.Errorf("file path %q is outside the allowed paths", file.Path)
		}
	}
	return nil
}

func (c *CreatePullRequest) Apply(ctx context.Context, app Applier, _ int) (string, error) {
	return app.CreatePullRequest(ctx, c)
}

// MissingTool reports a capability gap the execution step hit. It is
// audit-only and never touches the repository.
type MissingTool struct {
	Tool   string `json:"tool" jsonschema:"required,description=Name of the missing tool or capability"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Why the tool was needed"`
}

func (*MissingTool) Type() agentspec.OutputType { return agentspec.OutputMissingTool }

func (m *MissingTool) Validate(context.Context, *Env) error {
	if strings.TrimSpace(m.Tool) == "" {
		return errors.New("tool is required")
	}
	return nil
}

func (m *MissingTool) Apply(context.Context, Applier, int) (string, error) {
	return fmt.Sprintf("missing tool recorded: %s", m.Tool), nil
}

// pathAllowed reports whether p matches any allow-list pattern: an exact
// path, a path.Match glob, or a "dir/**" prefix.
func pathAllowed(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if pattern == p {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(p, prefix+"/") {
				return true
			}
			continue
		}
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}
