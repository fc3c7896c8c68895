// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates one annotation processing unit per shard:
// load the cache, plan hits and misses, release the snapshot, annotate the
// misses, persist the new cache entries, then aggregate and emit document
// records. New cache entries are committed before any record output is
// written, so completed annotation work survives a downstream failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/entity-engine/internal/aggregate"
	"github.com/pdiddy/entity-engine/internal/annotate"
	"github.com/pdiddy/entity-engine/internal/cachestore"
	"github.com/pdiddy/entity-engine/internal/plan"
	"github.com/pdiddy/entity-engine/internal/segment"
	"github.com/pdiddy/entity-engine/pkg/types"
)

// Summary holds counts from one shard's processing unit.
type Summary struct {
	Segments       int
	Documents      int
	Skipped        int // malformed input records
	Hits           int
	MissSegments   int
	DistinctMisses int
	CacheEntries   int // total entries after commit
	Chars          int64
}

// HitRatio returns the fraction of segments served from cache.
func (s Summary) HitRatio() float64 {
	if s.Segments == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Segments)
}

// EstimatedTokens approximates annotator token volume at four characters
// per token.
func (s Summary) EstimatedTokens() int64 {
	return s.Chars / 4
}

// ProcessShard runs one processing unit: segments from in, document
// records to out, progress to w. The cache snapshot is confined to the
// planning step: it is loaded, consulted to partition segments, and
// dropped before the annotation batch runs, so peak memory holds the
// snapshot and the batch only transiently, never both for the duration of
// annotation.
//
// An annotation failure aborts the unit with nothing written: no cache
// update, no records. A corrupt cache artifact degrades to a cold start.
func ProcessShard(ctx context.Context, ann annotate.Annotator, store *cachestore.Store, in io.Reader, out, w io.Writer) (Summary, error) {
	var summary Summary

	segments, skipped, err := segment.ReadShard(in)
	if err != nil {
		return summary, err
	}
	summary.Segments = len(segments)
	summary.Skipped = skipped
	for _, seg := range segments {
		summary.Chars += int64(len(seg.Text))
	}
	if skipped > 0 {
		fmt.Fprintf(w, "skipped %d malformed records\n", skipped)
	}
	fmt.Fprintf(w, "%d segments, ~%d estimated tokens\n", summary.Segments, summary.EstimatedTokens())

	p, err := buildPlan(store, segments, w)
	if err != nil {
		return summary, err
	}

	summary.Hits = p.Hits
	summary.MissSegments = p.MissSegments
	summary.DistinctMisses = len(p.Misses)
	fmt.Fprintf(w, "cache hits: %d/%d (%.1f%%)\n",
		p.Hits, summary.Segments, summary.HitRatio()*100)

	if len(p.Misses) > 0 {
		fmt.Fprintf(w, "annotating %d new texts (%d segments)\n", len(p.Misses), p.MissSegments)
		start := time.Now()

		results, err := annotate.RunBatch(ctx, ann, p.Misses)
		if err != nil {
			return summary, err
		}
		fmt.Fprintf(w, "annotation time: %v\n", time.Since(start).Round(time.Millisecond))

		if err := p.Scatter(results); err != nil {
			return summary, err
		}

		// Commit before producing output. MergeAndPersist re-reads the
		// disk state, so growth written by earlier shards is preserved.
		total, err := store.MergeAndPersist(p.NewEntries(results))
		if err != nil {
			return summary, fmt.Errorf("persisting cache: %w", err)
		}
		summary.CacheEntries = total
		fmt.Fprintf(w, "cache now holds %d entries\n", total)
	} else if summary.Segments > 0 {
		fmt.Fprintln(w, "all segments found in cache")
	}

	docs, err := aggregate.Documents(segments, p.Results)
	if err != nil {
		return summary, err
	}
	summary.Documents = len(docs)

	if err := aggregate.WriteRecords(out, docs); err != nil {
		return summary, err
	}
	fmt.Fprintf(w, "wrote %d document records\n", summary.Documents)

	return summary, nil
}

// buildPlan loads the cache snapshot and partitions segments against it.
// The snapshot stays confined to this function: once the plan exists no
// further lookups are possible, and the memory is reclaimable before the
// annotation batch runs. A corrupt artifact degrades to an empty store.
func buildPlan(store *cachestore.Store, segments []types.Segment, w io.Writer) (*plan.Plan, error) {
	snapshot, err := store.Load()
	if err != nil {
		if !errors.Is(err, cachestore.ErrCacheCorrupt) {
			return nil, err
		}
		fmt.Fprintf(w, "warning: %v; starting with empty cache\n", err)
		snapshot = map[string]types.AnnotationResult{}
	}
	fmt.Fprintf(w, "loaded cache with %d entries\n", len(snapshot))

	return plan.Build(segments, snapshot), nil
}
