/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package router matches a normalized event against the live set of agent
// definitions. Routing is pure: for a fixed definition set and event it
// always produces the same ordered candidate list, and zero matches is a
// perfectly valid outcome.
package router

import (
	"context"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/event"
	"github.com/chainguard-dev/clog"
)

// AgentInput is the manual dispatch input that narrows routing to one agent.
const AgentInput = "agent"

// Route returns the definitions whose triggers match the event, in
// definition order. Manual dispatches may carry an explicit agent selector;
// when present, only the named agent (if it matches) is returned.
func Route(ctx context.Context, defs []*agentspec.Definition, dc *event.DispatchContext) []*agentspec.Definition {
	log := clog.FromContext(ctx)

	selector := ""
	if dc.EventName == "workflow_dispatch" {
		selector = dc.Inputs[AgentInput]
	}

	var matched []*agentspec.Definition
	for _, def := range defs {
		if !def.On.Matches(dc.EventName, dc.Action) {
			continue
		}
		if selector != "" && def.Name != selector {
			continue
		}
		matched = append(matched, def)
	}

	log.With("event", dc.EventName).
		With("action", dc.Action).
		With("candidates", len(matched)).
		Info("Routed event to agents")
	return matched
}
