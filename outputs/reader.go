/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package outputs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"chainguard.dev/dispatchaf/agentspec"
)

// File is one intent file as found on disk, not yet decoded.
type File struct {
	Path string
	Type agentspec.OutputType
	Seq  int
	Raw  []byte
}

// Intent files are named "{output-type}-{sequence}.json".
var intentFileName = regexp.MustCompile(`^([a-z][a-z-]*[a-z])-(\d+)\.json$`)

// ReadDir reads every intent file under dir in file order (type, then
// sequence). Files that do not follow the naming convention are ignored; a
// missing directory means the execution step produced no outputs.
func ReadDir(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading intent directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := intentFileName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		files = append(files, File{
			Path: path,
			Type: agentspec.OutputType(m[1]),
			Seq:  seq,
			Raw:  raw,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Type != files[j].Type {
			return files[i].Type < files[j].Type
		}
		return files[i].Seq < files[j].Seq
	})
	return files, nil
}
