package segment

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/entity-engine/pkg/types"
)

func writeFiling(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWriteShards(t *testing.T) {
	inputDir := t.TempDir()
	batchDir := filepath.Join(t.TempDir(), "batches")

	writeFiling(t, inputDir, "a.json",
		`{"accession":"0001-24","path":"doc1.htm","data":{"text":"first filing text"}}`)
	writeFiling(t, inputDir, "b.json",
		`{"accession":"0002-24","path":"doc2.htm","data":{"text":"second filing text"}}`)
	writeFiling(t, inputDir, "c.json",
		`{"accession":"0003-24","path":"doc3.htm","data":{"text":"third filing text"}}`)
	writeFiling(t, inputDir, "broken.json", `{not json`)
	writeFiling(t, inputDir, "notes.txt", `ignored`)

	var out bytes.Buffer
	summary, err := WriteShards(types.SegmenterConfig{
		InputDir:  inputDir,
		BatchDir:  batchDir,
		BatchSize: 2,
	}, &out)
	if err != nil {
		t.Fatalf("WriteShards: %v", err)
	}

	if summary.Filings != 3 || summary.Failed != 1 || summary.Shards != 2 {
		t.Errorf("summary = %+v, want 3 filings, 1 failed, 2 shards", summary)
	}
	if summary.Records != 3 {
		t.Errorf("summary.Records = %d, want 3", summary.Records)
	}

	// First shard holds two filings, second the remainder.
	f0, err := os.Open(filepath.Join(batchDir, "segments_batch_0000.jsonl"))
	if err != nil {
		t.Fatalf("opening shard 0: %v", err)
	}
	defer f0.Close()
	segments, skipped, err := ReadShard(f0)
	if err != nil {
		t.Fatalf("ReadShard: %v", err)
	}
	if skipped != 0 || len(segments) != 2 {
		t.Errorf("shard 0: %d segments, %d skipped, want 2, 0", len(segments), skipped)
	}

	f1, err := os.Open(filepath.Join(batchDir, "segments_batch_0001.jsonl"))
	if err != nil {
		t.Fatalf("opening shard 1: %v", err)
	}
	defer f1.Close()
	segments, _, err = ReadShard(f1)
	if err != nil {
		t.Fatalf("ReadShard: %v", err)
	}
	if len(segments) != 1 {
		t.Errorf("shard 1: %d segments, want 1", len(segments))
	}
	if segments[0].Document.Accession != "0003-24" {
		t.Errorf("shard 1 segment = %+v", segments[0])
	}
}

func TestWriteShardsMissingInputDir(t *testing.T) {
	var out bytes.Buffer
	_, err := WriteShards(types.SegmenterConfig{
		InputDir: filepath.Join(t.TempDir(), "missing"),
		BatchDir: t.TempDir(),
	}, &out)
	if err == nil {
		t.Error("WriteShards accepted missing input directory")
	}
}
