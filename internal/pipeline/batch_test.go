package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordsName(t *testing.T) {
	cases := []struct {
		shard string
		want  string
	}{
		{"segments_batch_0003.jsonl", "segments_batch_0003.records.jsonl"},
		{"segments_batch_0000.jsonl", "segments_batch_0000.records.jsonl"},
	}
	for _, tc := range cases {
		if got := RecordsName(tc.shard); got != tc.want {
			t.Errorf("RecordsName(%q) = %q, want %q", tc.shard, got, tc.want)
		}
	}
}

func writeShardFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessDir(t *testing.T) {
	batchDir := t.TempDir()
	recordsDir := t.TempDir()

	writeShardFile(t, batchDir, "segments_batch_0000.jsonl",
		`{"accession":"A","path":"x","text":"hello world"}`+"\n")
	writeShardFile(t, batchDir, "segments_batch_0001.jsonl",
		`{"accession":"B","path":"y","text":"goodbye"}`+"\n")
	writeShardFile(t, batchDir, "notes.txt", "ignored")

	ann := scenarioAnnotator()
	store := newTestStore(t)

	summary, err := ProcessDir(context.Background(), ann, store, batchDir, recordsDir, io.Discard)
	if err != nil {
		t.Fatalf("ProcessDir: %v", err)
	}
	if summary.Processed != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" || len(summary.RunID) != 26 {
		t.Errorf("RunID = %q, want a ULID", summary.RunID)
	}
	if summary.HasFailures() {
		t.Error("HasFailures() = true on a clean run")
	}

	for _, name := range []string{"segments_batch_0000.records.jsonl", "segments_batch_0001.records.jsonl"} {
		if _, err := os.Stat(filepath.Join(recordsDir, name)); err != nil {
			t.Errorf("missing records file %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(recordsDir, "segments_batch_0000.records.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"PERSON":["Bob"]`) {
		t.Errorf("records content = %s", data)
	}
}

func TestProcessDirSkipsExistingRecords(t *testing.T) {
	batchDir := t.TempDir()
	recordsDir := t.TempDir()

	writeShardFile(t, batchDir, "segments_batch_0000.jsonl",
		`{"accession":"A","path":"x","text":"hello world"}`+"\n")
	existing := filepath.Join(recordsDir, "segments_batch_0000.records.jsonl")
	if err := os.WriteFile(existing, []byte("prior run output\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ann := scenarioAnnotator()
	store := newTestStore(t)

	var progress bytes.Buffer
	summary, err := ProcessDir(context.Background(), ann, store, batchDir, recordsDir, &progress)
	if err != nil {
		t.Fatalf("ProcessDir: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if ann.calls() != 0 {
		t.Errorf("annotator called for a skipped shard")
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "prior run output\n" {
		t.Errorf("existing records overwritten: %q", data)
	}
}

func TestProcessDirStopsOnFailure(t *testing.T) {
	batchDir := t.TempDir()
	recordsDir := t.TempDir()

	writeShardFile(t, batchDir, "segments_batch_0000.jsonl",
		`{"accession":"A","path":"x","text":"hello world"}`+"\n")
	writeShardFile(t, batchDir, "segments_batch_0001.jsonl",
		`{"accession":"B","path":"y","text":"goodbye"}`+"\n")

	ann := &scriptedAnnotator{err: errors.New("annotator down")}
	store := newTestStore(t)

	summary, err := ProcessDir(context.Background(), ann, store, batchDir, recordsDir, io.Discard)
	if err == nil {
		t.Fatal("ProcessDir succeeded with a failing annotator")
	}
	if !strings.Contains(err.Error(), "segments_batch_0000.jsonl") {
		t.Errorf("error does not name the failed shard: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if ann.calls() != 1 {
		t.Errorf("later shards were attempted after a failure: %d calls", ann.calls())
	}

	// The aborted unit leaves neither records nor temp files behind.
	entries, readErr := os.ReadDir(recordsDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("records directory not empty after failed run: %v", entries)
	}
}

func TestProcessDirFailedShardRetriedNextRun(t *testing.T) {
	batchDir := t.TempDir()
	recordsDir := t.TempDir()

	writeShardFile(t, batchDir, "segments_batch_0000.jsonl",
		`{"accession":"A","path":"x","text":"hello world"}`+"\n")

	store := newTestStore(t)
	failing := &scriptedAnnotator{err: errors.New("annotator down")}
	if _, err := ProcessDir(context.Background(), failing, store, batchDir, recordsDir, io.Discard); err == nil {
		t.Fatal("first run succeeded with a failing annotator")
	}

	healthy := scenarioAnnotator()
	summary, err := ProcessDir(context.Background(), healthy, store, batchDir, recordsDir, io.Discard)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want the failed shard retried", summary)
	}
}

func TestProcessDirCancelledContext(t *testing.T) {
	batchDir := t.TempDir()
	recordsDir := t.TempDir()

	writeShardFile(t, batchDir, "segments_batch_0000.jsonl",
		`{"accession":"A","path":"x","text":"hello world"}`+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ann := scenarioAnnotator()
	store := newTestStore(t)
	_, err := ProcessDir(ctx, ann, store, batchDir, recordsDir, io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if ann.calls() != 0 {
		t.Errorf("annotator called after cancellation")
	}
}

func TestProcessDirMissingBatchDir(t *testing.T) {
	store := newTestStore(t)
	_, err := ProcessDir(context.Background(), scenarioAnnotator(), store,
		filepath.Join(t.TempDir(), "absent"), t.TempDir(), io.Discard)
	if err == nil {
		t.Fatal("ProcessDir succeeded with a missing batch directory")
	}
}
