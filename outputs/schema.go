/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs

import (
	"encoding/json"
	"fmt"
	"os"

	"chainguard.dev/dispatchaf/agentspec"
	"github.com/invopop/jsonschema"
)

// reflector is wired with the defaults intent schemas need: required
// fields come from jsonschema tags and the schemas are self-contained.
var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	DoNotReference:             true,
}

// Schema returns the JSON schema for one output type.
func Schema(typ agentspec.OutputType) (*jsonschema.Schema, error) {
	intent, err := zeroIntent(typ)
	if err != nil {
		return nil, err
	}
	return reflector.Reflect(intent), nil
}

// Contract describes one allowed output type to the execution step.
type Contract struct {
	Schema *jsonschema.Schema `json:"schema"`
	Max    int                `json:"max,omitempty"`
	// Signed tells the execution step commits for this type must carry a
	// verified signature. The applier's API write path satisfies it: the
	// platform signs commits created through the Git Data API.
	Signed bool `json:"signed,omitempty"`
}

// WriteContract writes the full output contract for an agent: one entry
// per allowed type, with its schema, per-run limit, and signing
// requirement. The execution step reads it so the intents it emits match
// what the executor will accept.
func WriteContract(path string, rules map[agentspec.OutputType]agentspec.OutputRule) error {
	contract := map[agentspec.OutputType]Contract{}
	for typ, rule := range rules {
		schema, err := Schema(typ)
		if err != nil {
			return err
		}
		contract[typ] = Contract{Schema: schema, Max: rule.Max, Signed: rule.Signed}
	}
	raw, err := json.MarshalIndent(contract, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output contract: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing output contract: %w", err)
	}
	return nil
}

func zeroIntent(typ agentspec.OutputType) (Intent, error) {
	switch typ {
	case agentspec.OutputAddComment:
		return &AddComment{}, nil
	case agentspec.OutputAddLabels:
		return &AddLabels{}, nil
	case agentspec.OutputCreateIssue:
		return &CreateIssue{}, nil
	case agentspec.OutputUpdateIssue:
		return &UpdateIssue{}, nil
	case agentspec.OutputCreatePullRequest:
		return &CreatePullRequest{}, nil
	case agentspec.OutputMissingTool:
		return &MissingTool{}, nil
	default:
		return nil, fmt.Errorf("unknown output type %q", typ)
	}
}
