// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/entity-engine/internal/annotate"
	"github.com/pdiddy/entity-engine/internal/cachestore"
)

// RunSummary holds counts from a directory run over many shards.
type RunSummary struct {
	RunID     string
	Processed int
	Skipped   int // shards whose records already exist
	Failed    int
}

// Total returns the number of shards considered.
func (s RunSummary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// HasFailures reports whether any shard failed.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// RecordsName derives the records filename for a shard file:
// segments_batch_0003.jsonl becomes segments_batch_0003.records.jsonl.
// Deriving from the shard stem keeps the mapping stable when shards are
// added or removed between runs.
func RecordsName(shardName string) string {
	stem := strings.TrimSuffix(shardName, ".jsonl")
	return stem + ".records.jsonl"
}

// ProcessDir runs the annotation pipeline over every *.jsonl shard in
// batchDir (sorted by name), writing document records to recordsDir.
// Shards whose records file already exists are skipped, which makes
// re-running a partially completed directory idempotent: cache hits
// short-circuit already-annotated segments, and finished shards are not
// re-emitted.
//
// A failed shard stops the run: later shards would re-plan against a
// cache the failed unit never advanced, and the failure (annotator down,
// disk full) usually affects them too.
func ProcessDir(ctx context.Context, ann annotate.Annotator, store *cachestore.Store, batchDir, recordsDir string, w io.Writer) (RunSummary, error) {
	summary := RunSummary{
		RunID: ulid.MustNew(ulid.Now(), rand.Reader).String(),
	}

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return summary, fmt.Errorf("reading batch directory %s: %w", batchDir, err)
	}
	if err := os.MkdirAll(recordsDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating records directory: %w", err)
	}

	var shards []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		shards = append(shards, entry.Name())
	}
	sort.Strings(shards)

	fmt.Fprintf(w, "run %s: %d shards in %s\n", summary.RunID, len(shards), batchDir)

	for _, name := range shards {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		recordsPath := filepath.Join(recordsDir, RecordsName(name))
		if _, err := os.Stat(recordsPath); err == nil {
			fmt.Fprintf(w, "skipped %s (records exist)\n", name)
			summary.Skipped++
			continue
		}

		fmt.Fprintf(w, "processing %s\n", name)
		if err := processOne(ctx, ann, store, filepath.Join(batchDir, name), recordsPath, w); err != nil {
			summary.Failed++
			return summary, fmt.Errorf("shard %s: %w", name, err)
		}
		summary.Processed++
	}

	fmt.Fprintf(w, "\nprocessed: %d, skipped: %d, failed: %d\n",
		summary.Processed, summary.Skipped, summary.Failed)
	return summary, nil
}

// processOne handles a single shard file. Records are written to a temp
// file and renamed into place on success, so an aborted unit leaves no
// records file and the shard is retried on the next run.
func processOne(ctx context.Context, ann annotate.Annotator, store *cachestore.Store, shardPath, recordsPath string, w io.Writer) error {
	in, err := os.Open(shardPath)
	if err != nil {
		return fmt.Errorf("opening shard: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(recordsPath), filepath.Base(recordsPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp records file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := ProcessShard(ctx, ann, store, in, tmp, w); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing records file: %w", err)
	}
	if err := os.Rename(tmpPath, recordsPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing records file: %w", err)
	}
	return nil
}
