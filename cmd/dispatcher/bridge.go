/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"chainguard.dev/dispatchaf/audit"
	"chainguard.dev/dispatchaf/pipeline"
	"github.com/chainguard-dev/clog"
)

// execBridge runs the AI execution step as a subprocess. The step receives
// the handoff through environment variables and files, and writes its
// output intents as JSON files into AGENT_OUTPUT_DIR. If it also writes a
// result file, the cost and turn counts from it land in the manifest.
type execBridge struct {
	command string
	args    []string
	timeout time.Duration
}

// bridgeResult is the optional result file the execution step may leave
// next to the intent directory.
type bridgeResult struct {
	CostUSD float64 `json:"cost_usd"`
	Turns   int     `json:"turns"`
}

func newExecBridge(command string, timeout time.Duration) *execBridge {
	return &execBridge{command: command, timeout: timeout}
}

func (b *execBridge) Execute(ctx context.Context, h *pipeline.Handoff) (*audit.ExecutionRecord, error) {
	log := clog.FromContext(ctx).With("agent", h.Agent.Name)

	runDir := filepath.Dir(h.IntentDir)
	promptPath := filepath.Join(runDir, "prompt.md")
	if err := os.WriteFile(promptPath, []byte(h.Agent.Prompt), 0o644); err != nil {
		return nil, fmt.Errorf("writing prompt: %w", err)
	}
	contextPath := filepath.Join(runDir, "context.md")
	if err := os.WriteFile(contextPath, []byte(h.ContextText), 0o644); err != nil {
		return nil, fmt.Errorf("writing context: %w", err)
	}
	resultPath := filepath.Join(runDir, "result.json")

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, b.command, b.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"AGENT_NAME="+h.Agent.Name,
		"AGENT_PROMPT_FILE="+promptPath,
		"AGENT_CONTEXT_FILE="+contextPath,
		"AGENT_OUTPUT_DIR="+h.IntentDir,
		"AGENT_CONTRACT_FILE="+h.ContractPath,
		"AGENT_RESULT_FILE="+resultPath,
		"AGENT_DISPATCH_CONTEXT="+h.EncodedContext,
		fmt.Sprintf("AGENT_TARGET=%d", h.Target),
	)

	log.With("command", b.command).Info("Starting execution step")
	err := cmd.Run()
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("execution step: %w", err)
	}

	rec := &audit.ExecutionRecord{Duration: duration}
	if raw, err := os.ReadFile(resultPath); err == nil {
		var res bridgeResult
		if err := json.Unmarshal(raw, &res); err != nil {
			log.With("error", err).Warn("Malformed result file, ignoring")
		} else {
			rec.CostUSD = res.CostUSD
			rec.Turns = res.Turns
		}
	}
	return rec, nil
}
