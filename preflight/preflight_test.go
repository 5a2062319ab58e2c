/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package preflight_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"chainguard.dev/dispatchaf/preflight"
)

func TestResolveRequiresAICredential(t *testing.T) {
	t.Parallel()
	_, err := preflight.Resolve(context.Background(), preflight.Credentials{
		DefaultToken: "ghs_token",
	})
	if err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected a missing-AI-credential error, got %v", err)
	}
}

func TestResolveRequiresAutomationToken(t *testing.T) {
	t.Parallel()
	_, err := preflight.Resolve(context.Background(), preflight.Credentials{
		AnthropicAPIKey: "sk-ant-test",
	})
	if err == nil || !strings.Contains(err.Error(), "no automation token") {
		t.Fatalf("expected a missing-token error, got %v", err)
	}
}

func TestResolveDefaultToken(t *testing.T) {
	t.Parallel()
	id, err := preflight.Resolve(context.Background(), preflight.Credentials{
		AnthropicAPIKey: "sk-ant-test",
		DefaultToken:    "ghs_token",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Source != preflight.SourceDefault {
		t.Fatalf("source = %q, want %q", id.Source, preflight.SourceDefault)
	}
	if id.Actor != "github-actions[bot]" {
		t.Fatalf("actor = %q, want github-actions[bot]", id.Actor)
	}
	if id.GitHub == nil {
		t.Fatal("expected a GitHub client")
	}
}

func TestResolveAppWinsOverTokens(t *testing.T) {
	t.Parallel()
	// The fallback path probes the token's identity best-effort; bound it
	// so the test never waits on the network.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// An incomplete app credential falls through to the fallback token.
	id, err := preflight.Resolve(ctx, preflight.Credentials{
		AnthropicAPIKey: "sk-ant-test",
		AppID:           1234,
		FallbackToken:   "ghp_operator",
		DefaultToken:    "ghs_token",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Source != preflight.SourceFallback {
		t.Fatalf("source = %q, want %q", id.Source, preflight.SourceFallback)
	}
}
