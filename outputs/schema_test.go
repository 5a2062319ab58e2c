/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"chainguard.dev/dispatchaf/agentspec"
	"chainguard.dev/dispatchaf/outputs"
)

func TestWriteContractCarriesRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "contract.json")
	err := outputs.WriteContract(path, map[agentspec.OutputType]agentspec.OutputRule{
		agentspec.OutputCreatePullRequest: {Max: 2, Signed: true},
		agentspec.OutputAddComment:        {Max: 1},
	})
	if err != nil {
		t.Fatalf("WriteContract: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading contract: %v", err)
	}
	var contract map[string]struct {
		Schema json.RawMessage `json:"schema"`
		Max    int             `json:"max"`
		Signed bool            `json:"signed"`
	}
	if err := json.Unmarshal(raw, &contract); err != nil {
		t.Fatalf("unmarshaling contract: %v", err)
	}

	pr, ok := contract["create-pull-request"]
	if !ok {
		t.Fatalf("contract missing create-pull-request entry, got %v", contract)
	}
	if pr.Max != 2 || !pr.Signed {
		t.Fatalf("create-pull-request rule = max %d signed %v, want max 2 signed true", pr.Max, pr.Signed)
	}
	if len(pr.Schema) == 0 {
		t.Fatal("create-pull-request entry has no schema")
	}

	comment := contract["add-comment"]
	if comment.Max != 1 || comment.Signed {
		t.Fatalf("add-comment rule = max %d signed %v, want max 1 signed false", comment.Max, comment.Signed)
	}
}

func TestWriteContractRejectsUnknownType(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "contract.json")
	err := outputs.WriteContract(path, map[agentspec.OutputType]agentspec.OutputRule{
		agentspec.OutputType("deploy-to-prod"): {},
	})
	if err == nil {
		t.Fatal("expected an error for an unknown output type")
	}
}
