// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate folds per-segment annotation results onto per-document
// entity sets.
package aggregate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pdiddy/entity-engine/pkg/types"
)

// Documents unions the result of every segment into an aggregate keyed by
// the segment's document. Union is commutative and idempotent, so the
// outcome is independent of segment order and of how often the same entity
// string recurs. results must be the completed full-length result array
// for segments.
func Documents(segments []types.Segment, results []types.AnnotationResult) (map[types.DocumentKey]types.AnnotationResult, error) {
	if len(results) != len(segments) {
		return nil, fmt.Errorf("have %d results for %d segments", len(results), len(segments))
	}

	docs := make(map[types.DocumentKey]types.AnnotationResult)
	for i, seg := range segments {
		agg, ok := docs[seg.Document]
		if !ok {
			agg = types.AnnotationResult{}
			docs[seg.Document] = agg
		}
		agg.Merge(results[i])
	}
	return docs, nil
}

// WriteRecords emits one JSON record per document to w, newline-delimited,
// ordered by document key with sorted entity lists so repeated runs produce
// byte-identical output.
func WriteRecords(w io.Writer, docs map[types.DocumentKey]types.AnnotationResult) error {
	keys := make([]types.DocumentKey, 0, len(docs))
	for key := range docs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Accession != keys[j].Accession {
			return keys[i].Accession < keys[j].Accession
		}
		return keys[i].Path < keys[j].Path
	})

	enc := json.NewEncoder(w)
	for _, key := range keys {
		entities := docs[key]
		entities.Sort()
		record := types.DocumentRecord{
			Accession: key.Accession,
			Path:      key.Path,
			Entities:  entities,
		}
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("writing record for %s: %w", key.Accession, err)
		}
	}
	return nil
}
