// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package segment

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/entity-engine/pkg/types"
)

// BatchSummary holds counts from a shard-writing run.
type BatchSummary struct {
	Filings int
	Records int
	Shards  int
	Failed  int
}

// Total returns the number of filing files processed.
func (s BatchSummary) Total() int {
	return s.Filings + s.Failed
}

// HasFailures reports whether any filing files failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

const shardPrefix = "segments_batch_"

// WriteShards reads parsed filing JSON files from inputDir (sorted by
// name), flattens each into records, and writes shard files of batchSize
// filings each to batchDir, named segments_batch_NNNN.jsonl. Filing files
// that cannot be read or parsed are counted and skipped; progress goes
// to w.
func WriteShards(cfg types.SegmenterConfig, w io.Writer) (BatchSummary, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("reading input directory %s: %w", cfg.InputDir, err)
	}
	if err := os.MkdirAll(cfg.BatchDir, 0o755); err != nil {
		return BatchSummary{}, fmt.Errorf("creating batch directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		summary BatchSummary
		shard   *shardWriter
	)
	defer func() {
		if shard != nil {
			shard.close()
		}
	}()

	for _, name := range names {
		filing, err := readFiling(filepath.Join(cfg.InputDir, name))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if shard == nil {
			shard, err = newShardWriter(cfg.BatchDir, summary.Shards)
			if err != nil {
				return summary, err
			}
		}

		records := Flatten(filing)
		if err := shard.writeRecords(records); err != nil {
			return summary, err
		}
		summary.Filings++
		summary.Records += len(records)

		if summary.Filings%batchSize == 0 {
			if err := shard.close(); err != nil {
				return summary, err
			}
			fmt.Fprintf(w, "completed %s\n", shard.name)
			shard = nil
			summary.Shards++
		}
	}

	if shard != nil {
		if err := shard.close(); err != nil {
			return summary, err
		}
		fmt.Fprintf(w, "completed %s\n", shard.name)
		summary.Shards++
	}

	fmt.Fprintf(w, "\nfilings: %d, records: %d, shards: %d, failed: %d\n",
		summary.Filings, summary.Records, summary.Shards, summary.Failed)
	return summary, nil
}

func readFiling(path string) (Filing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Filing{}, err
	}
	var f Filing
	if err := json.Unmarshal(data, &f); err != nil {
		return Filing{}, fmt.Errorf("parse error: %w", err)
	}
	if f.Accession == "" {
		return Filing{}, fmt.Errorf("missing accession")
	}
	return f, nil
}

// shardWriter appends records to one shard file.
type shardWriter struct {
	f    *os.File
	enc  *json.Encoder
	name string
}

func newShardWriter(dir string, index int) (*shardWriter, error) {
	name := fmt.Sprintf("%s%04d.jsonl", shardPrefix, index)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating shard %s: %w", name, err)
	}
	return &shardWriter{f: f, enc: json.NewEncoder(f), name: name}, nil
}

func (s *shardWriter) writeRecords(records []Record) error {
	for _, rec := range records {
		if err := s.enc.Encode(rec); err != nil {
			return fmt.Errorf("writing record to %s: %w", s.name, err)
		}
	}
	return nil
}

func (s *shardWriter) close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
