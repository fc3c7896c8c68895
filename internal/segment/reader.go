// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package segment turns parsed filing documents into the ordered segment
// lists the annotation pipeline consumes: flattening JSON trees into text
// records, batching records into shard files, and reading shards back as
// segments.
package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/entity-engine/pkg/types"
)

// Record is one line of a shard file: a text field or flattened table
// column lifted out of a parsed filing document.
type Record struct {
	Accession string `json:"accession"`
	Path      string `json:"path"`
	JSONPath  string `json:"json_path,omitempty"`
	Type      string `json:"type,omitempty"`
	Text      string `json:"text"`
}

// maxLineBytes bounds a single shard line; filing exhibits can run long.
const maxLineBytes = 16 * 1024 * 1024

// ReadShard streams NDJSON records from r and splits each record's text on
// blank-line boundaries into segments, preserving record order. Lines that
// are not valid JSON or lack a required field are skipped and counted, not
// fatal: one bad record must never abort a shard.
func ReadShard(r io.Reader) (segments []types.Segment, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		if rec.Accession == "" || rec.Path == "" || rec.Text == "" {
			skipped++
			continue
		}

		doc := types.DocumentKey{Accession: rec.Accession, Path: rec.Path}
		for _, text := range Split(rec.Text) {
			segments = append(segments, types.Segment{
				Document: doc,
				JSONPath: rec.JSONPath,
				Kind:     rec.Type,
				Text:     text,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading shard: %w", err)
	}

	return segments, skipped, nil
}

// Split breaks text into trimmed, non-empty pieces on blank-line
// boundaries. A record without blank lines yields itself, trimmed.
func Split(text string) []string {
	var pieces []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
