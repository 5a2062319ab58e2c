/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package preflight resolves credentials and identity once per triggering
// event, before any agent-specific work. It fails closed: without an AI
// credential and a usable automation token the whole run aborts.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// Token sources, in resolution priority order.
const (
	SourceApp      = "app"      // dedicated GitHub App credential
	SourceFallback = "fallback" // operator-provided token
	SourceDefault  = "default"  // platform-default job token
)

// Credentials are the ambient inputs, typically via envconfig in main.
type Credentials struct {
	// AnthropicAPIKey is the AI-service credential; at least one AI
	// credential must be present or the run aborts.
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	// App credentials take priority over any token.
	AppID             int64  `env:"DISPATCH_APP_ID"`
	AppInstallationID int64  `env:"DISPATCH_APP_INSTALLATION_ID"`
	AppPrivateKey     string `env:"DISPATCH_APP_PRIVATE_KEY"`

	// FallbackToken is an operator-provided token, preferred over the
	// platform-default token.
	FallbackToken string `env:"DISPATCH_GITHUB_TOKEN"`

	// DefaultToken is the platform-default job token.
	DefaultToken string `env:"GITHUB_TOKEN"`
}

// Identity is the resolved execution identity for the whole run.
type Identity struct {
	GitHub *github.Client
	AI     anthropic.Client

	// Actor is the automation identity's login, used for attribution.
	Actor string
	// Source records which credential won: app, fallback, or default.
	Source string
}

// Resolve picks the execution credentials by priority (app credential,
// then fallback token, then platform-default token) and verifies an AI
// credential exists. Run-wide, not per-agent.
func Resolve(ctx context.Context, creds Credentials) (*Identity, error) {
	log := clog.FromContext(ctx)

	if creds.AnthropicAPIKey == "" {
		return nil, errors.New("no AI-service credential: set ANTHROPIC_API_KEY")
	}

	id := &Identity{
		AI: anthropic.NewClient(option.WithAPIKey(creds.AnthropicAPIKey)),
	}

	switch {
	case creds.AppID != 0 && creds.AppInstallationID != 0 && creds.AppPrivateKey != "":
		itr, err := ghinstallation.New(http.DefaultTransport, creds.AppID, creds.AppInstallationID, []byte(creds.AppPrivateKey))
		if err != nil {
			return nil, fmt.Errorf("creating app transport: %w", err)
		}
		id.GitHub = github.NewClient(&http.Client{Transport: itr})
		id.Source = SourceApp
		id.Actor = fmt.Sprintf("app/%d[bot]", creds.AppID)

	case creds.FallbackToken != "":
		id.GitHub = tokenClient(ctx, creds.FallbackToken)
		id.Source = SourceFallback

	case creds.DefaultToken != "":
		id.GitHub = tokenClient(ctx, creds.DefaultToken)
		id.Source = SourceDefault
		id.Actor = "github-actions[bot]"

	default:
		return nil, errors.New("no automation token: set app credentials, DISPATCH_GITHUB_TOKEN, or GITHUB_TOKEN")
	}

	if id.Source == SourceFallback {
		// Token owners are attributable; best effort, not fatal.
		if user, _, err := id.GitHub.Users.Get(ctx, ""); err == nil {
			id.Actor = user.GetLogin()
		}
	}

	log.With("source", id.Source).With("actor", id.Actor).Info("Resolved execution identity")
	return id, nil
}

func tokenClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}
