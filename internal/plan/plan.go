// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan partitions a segment list against a cache snapshot into
// hits and misses, and scatters annotator results back to their original
// positions.
package plan

import (
	"fmt"

	"github.com/pdiddy/entity-engine/internal/fingerprint"
	"github.com/pdiddy/entity-engine/pkg/types"
)

// Plan is the outcome of testing every segment against a cache snapshot.
//
// Misses carries each missing text once, in first-seen order: identical
// text appearing at several positions is annotated once and fanned out to
// all of them at scatter time. Results has one slot per input segment in
// original order; hit slots are pre-filled from the snapshot, miss slots
// are nil until Scatter runs.
type Plan struct {
	// Misses are the distinct texts requiring annotation.
	Misses []string

	// MissKeys holds the fingerprint of each entry in Misses.
	MissKeys []string

	// Results is the full-length result array, indexed like the input
	// segment list.
	Results []types.AnnotationResult

	// Hits counts segments satisfied from the snapshot.
	Hits int

	// MissSegments counts segments awaiting annotation. It exceeds
	// len(Misses) when missing text repeats within the batch.
	MissSegments int

	// positions maps each miss to the original indices sharing its text.
	positions [][]int
}

// Build computes the plan for segments against snapshot. The snapshot is
// only read here; callers drop their reference to it as soon as Build
// returns, bounding peak memory before the annotation batch runs.
func Build(segments []types.Segment, snapshot map[string]types.AnnotationResult) *Plan {
	p := &Plan{
		Results: make([]types.AnnotationResult, len(segments)),
	}

	missSlot := make(map[string]int)
	for i, seg := range segments {
		key := fingerprint.Key(seg.Text)

		if cached, ok := snapshot[key]; ok {
			p.Results[i] = cached
			p.Hits++
			continue
		}
		p.MissSegments++

		slot, ok := missSlot[key]
		if !ok {
			slot = len(p.Misses)
			missSlot[key] = slot
			p.Misses = append(p.Misses, seg.Text)
			p.MissKeys = append(p.MissKeys, key)
			p.positions = append(p.positions, nil)
		}
		p.positions[slot] = append(p.positions[slot], i)
	}

	return p
}

// Scatter places one annotator result per miss into every original
// position that text occupied, completing Results. It errors if the
// annotator broke the one-result-per-text contract.
func (p *Plan) Scatter(results []types.AnnotationResult) error {
	if len(results) != len(p.Misses) {
		return fmt.Errorf("annotator returned %d results for %d texts", len(results), len(p.Misses))
	}
	for slot, result := range results {
		for _, i := range p.positions[slot] {
			p.Results[i] = result
		}
	}
	return nil
}

// NewEntries pairs each miss fingerprint with its annotator result, in the
// shape MergeAndPersist expects. Call after Scatter has validated lengths.
func (p *Plan) NewEntries(results []types.AnnotationResult) map[string]types.AnnotationResult {
	entries := make(map[string]types.AnnotationResult, len(p.MissKeys))
	for i, key := range p.MissKeys {
		entries[key] = results[i]
	}
	return entries
}
