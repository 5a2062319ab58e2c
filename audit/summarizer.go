/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Summarizer turns a failed-run report into a short triage paragraph for
// the tracking issue. Implementations must be read-only.
type Summarizer interface {
	Summarize(ctx context.Context, report string) (string, error)
}

const triageModel = "claude-sonnet-4-5"

// AISummarizer asks the AI service for the triage paragraph.
type AISummarizer struct {
	client anthropic.Client
	model  string
}

// AISummarizerOption configures an AISummarizer.
type AISummarizerOption func(*AISummarizer)

// WithModel overrides the triage model.
func WithModel(model string) AISummarizerOption {
	return func(s *AISummarizer) {
		s.model = model
	}
}

// NewAISummarizer wraps the run-wide AI client resolved at preflight.
func NewAISummarizer(client anthropic.Client, opts ...AISummarizerOption) *AISummarizer {
	s := &AISummarizer{
		client: client,
		model:  triageModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize sends the failure report in a single non-streaming turn and
// returns the text blocks of the reply.
func (s *AISummarizer) Summarize(ctx context.Context, report string) (string, error) {
	prompt := "The following automation agent run failed. In at most three sentences, " +
		"state the most likely root cause and the single most useful next step for a maintainer. " +
		"Do not restate the report.\n\n" + report

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(prompt),
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("requesting triage summary: %w", err)
	}

	var sb strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	summary := strings.TrimSpace(sb.String())
	if summary == "" {
		return "", fmt.Errorf("triage summary came back empty")
	}
	return summary, nil
}
