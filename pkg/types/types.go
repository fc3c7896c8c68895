// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the entity-engine pipeline.
package types

import "sort"

// DocumentKey identifies the source document a segment belongs to: the
// filing's accession number plus the document path within the filing.
type DocumentKey struct {
	Accession string `json:"accession" yaml:"accession"`
	Path      string `json:"path" yaml:"path"`
}

// Segment is one unit of annotatable text with its parent document key.
// Segments are positional, not unique: the same text may recur within or
// across documents.
type Segment struct {
	Document DocumentKey `json:"document" yaml:"document"`

	// JSONPath is the dotted path to the source field inside the parsed
	// filing tree (e.g. "items.[2].content"). Provenance only.
	JSONPath string `json:"json_path,omitempty" yaml:"json_path,omitempty"`

	// Kind records how the text was derived: "text" for prose fields,
	// "table_column" for flattened table columns.
	Kind string `json:"type,omitempty" yaml:"type,omitempty"`

	Text string `json:"text" yaml:"text"`
}

// AnnotationResult maps an entity-type label (open vocabulary, e.g. "PERSON",
// "ORG") to the distinct entity strings the annotator reported for one
// segment. Entity strings are verbatim; no normalization happens here.
// The slice carries set semantics: callers mutate it only through Merge.
type AnnotationResult map[string][]string

// Merge unions other into r, creating type buckets on first sight. Union is
// idempotent and commutative, so merge order never changes the outcome.
func (r AnnotationResult) Merge(other AnnotationResult) {
	for label, texts := range other {
		seen := make(map[string]bool, len(r[label])+len(texts))
		for _, t := range r[label] {
			seen[t] = true
		}
		for _, t := range texts {
			if !seen[t] {
				r[label] = append(r[label], t)
				seen[t] = true
			}
		}
	}
}

// Clone returns a deep copy of r.
func (r AnnotationResult) Clone() AnnotationResult {
	out := make(AnnotationResult, len(r))
	for label, texts := range r {
		out[label] = append([]string(nil), texts...)
	}
	return out
}

// Sort orders every entity list lexicographically, giving record output and
// cache content a deterministic form.
func (r AnnotationResult) Sort() {
	for _, texts := range r {
		sort.Strings(texts)
	}
}

// DocumentRecord is one line of the records output: a document key with its
// aggregated entities across all of the document's segments.
type DocumentRecord struct {
	Accession string           `json:"accession" yaml:"accession"`
	Path      string           `json:"path" yaml:"path"`
	Entities  AnnotationResult `json:"entities" yaml:"entities"`
}
