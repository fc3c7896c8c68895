// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotate runs text segments through an external named-entity
// annotator. The annotator is the single most expensive step of the
// pipeline; callers submit one batch per processing unit and must treat
// any failure as a whole-batch failure with no usable partial results.
package annotate

import (
	"context"
	"fmt"

	"github.com/pdiddy/entity-engine/pkg/types"
)

// Annotator is the boundary to the external annotation model. Implementations
// return exactly one result per input text, in input order, or an error for
// the whole batch; per-item failure is not part of the contract.
type Annotator interface {
	AnnotateBatch(ctx context.Context, texts []string) ([]types.AnnotationResult, error)
}

// RunBatch invokes the annotator once over texts and enforces the
// one-result-per-text contract. Backends returning nil entries have them
// normalized to empty results so downstream merging stays uniform.
func RunBatch(ctx context.Context, a Annotator, texts []string) ([]types.AnnotationResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results, err := a.AnnotateBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("annotating batch of %d texts: %w", len(texts), err)
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("annotator returned %d results for %d texts", len(results), len(texts))
	}

	for i, r := range results {
		if r == nil {
			results[i] = types.AnnotationResult{}
		}
	}
	return results, nil
}
