/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentspec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"
)

// LoadError records one definition file that could not be loaded. Broken
// definitions are excluded from routing but surfaced in the audit manifest.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// LoadDir discovers every agent definition under dir, fresh, with no
// caching between runs. Files are processed in lexical order so routing is
// deterministic. A file that cannot be parsed or validated is logged,
// recorded, and excluded; it never aborts discovery.
func LoadDir(ctx context.Context, dir string) ([]*Definition, []LoadError) {
	log := clog.FromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.With("dir", dir).Info("No agent definitions directory")
			return nil, nil
		}
		return nil, []LoadError{{Path: dir, Err: err}}
	}

	var (
		defs   []*Definition
		broken []LoadError
		names  = map[string]string{} // name -> file, for uniqueness
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)

		def, err := LoadFile(path)
		if err != nil {
			log.With("file", path).With("error", err).Warn("Excluding unloadable agent definition")
			broken = append(broken, LoadError{Path: path, Err: err})
			continue
		}
		if prior, ok := names[def.Name]; ok {
			err := fmt.Errorf("agent name %q already declared in %s", def.Name, prior)
			log.With("file", path).With("error", err).Warn("Excluding duplicate agent definition")
			broken = append(broken, LoadError{Path: path, Err: err})
			continue
		}
		names[def.Name] = path
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	log.With("agents", len(defs)).With("broken", len(broken)).Info("Discovered agent definitions")
	return defs, broken
}

// LoadFile parses and validates a single definition file.
func LoadFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates one YAML definition document.
func Parse(raw []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}
