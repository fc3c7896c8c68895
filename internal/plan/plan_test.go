package plan

import (
	"testing"

	"github.com/pdiddy/entity-engine/internal/fingerprint"
	"github.com/pdiddy/entity-engine/pkg/types"
)

func seg(accession, path, text string) types.Segment {
	return types.Segment{
		Document: types.DocumentKey{Accession: accession, Path: path},
		Text:     text,
	}
}

func TestBuildPartition(t *testing.T) {
	segments := []types.Segment{
		seg("A", "x", "cached text"),
		seg("A", "x", "new text one"),
		seg("B", "y", "new text two"),
		seg("B", "y", "cached text"),
	}
	snapshot := map[string]types.AnnotationResult{
		fingerprint.Key("cached text"): {"ORG": {"Acme"}},
	}

	p := Build(segments, snapshot)

	if p.Hits != 2 {
		t.Errorf("Hits = %d, want 2", p.Hits)
	}
	if p.MissSegments != 2 {
		t.Errorf("MissSegments = %d, want 2", p.MissSegments)
	}
	if p.Hits+p.MissSegments != len(segments) {
		t.Errorf("partition incomplete: %d + %d != %d", p.Hits, p.MissSegments, len(segments))
	}
	if len(p.Misses) != 2 {
		t.Fatalf("len(Misses) = %d, want 2", len(p.Misses))
	}
	if p.Misses[0] != "new text one" || p.Misses[1] != "new text two" {
		t.Errorf("Misses = %v, want first-seen order", p.Misses)
	}

	// Hit slots pre-filled, miss slots pending.
	if p.Results[0] == nil || p.Results[3] == nil {
		t.Error("hit slots not pre-filled from snapshot")
	}
	if p.Results[1] != nil || p.Results[2] != nil {
		t.Error("miss slots filled before scatter")
	}
}

func TestBuildDeduplicatesMisses(t *testing.T) {
	// Identical text at several positions is annotated once, even on a
	// cold cache.
	segments := []types.Segment{
		seg("A", "x", "hello world"),
		seg("A", "y", "hello world"),
		seg("B", "z", "goodbye"),
	}

	p := Build(segments, nil)

	if len(p.Misses) != 2 {
		t.Fatalf("len(Misses) = %d, want 2 distinct texts", len(p.Misses))
	}
	if p.MissSegments != 3 {
		t.Errorf("MissSegments = %d, want 3", p.MissSegments)
	}

	err := p.Scatter([]types.AnnotationResult{
		{"PERSON": {"Bob"}},
		{},
	})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	if got := p.Results[0]["PERSON"][0]; got != "Bob" {
		t.Errorf("Results[0] = %v", p.Results[0])
	}
	if got := p.Results[1]["PERSON"][0]; got != "Bob" {
		t.Errorf("duplicate text did not share result: %v", p.Results[1])
	}
	if len(p.Results[2]) != 0 {
		t.Errorf("Results[2] = %v, want empty", p.Results[2])
	}
}

func TestScatterOrderPreserved(t *testing.T) {
	segments := []types.Segment{
		seg("A", "x", "first"),
		seg("A", "x", "second"),
		seg("A", "x", "third"),
	}
	p := Build(segments, nil)

	results := []types.AnnotationResult{
		{"ORD": {"1"}},
		{"ORD": {"2"}},
		{"ORD": {"3"}},
	}
	if err := p.Scatter(results); err != nil {
		t.Fatalf("Scatter: %v", err)
	}

	for i, want := range []string{"1", "2", "3"} {
		if got := p.Results[i]["ORD"][0]; got != want {
			t.Errorf("Results[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestScatterLengthMismatch(t *testing.T) {
	p := Build([]types.Segment{seg("A", "x", "only")}, nil)

	if err := p.Scatter(nil); err == nil {
		t.Error("Scatter accepted short result slice")
	}
	if err := p.Scatter(make([]types.AnnotationResult, 2)); err == nil {
		t.Error("Scatter accepted long result slice")
	}
}

func TestNewEntriesKeyedByFingerprint(t *testing.T) {
	p := Build([]types.Segment{
		seg("A", "x", "hello world"),
		seg("B", "y", "goodbye"),
	}, nil)

	results := []types.AnnotationResult{
		{"PERSON": {"Bob"}},
		{},
	}
	entries := p.NewEntries(results)

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	r, ok := entries[fingerprint.Key("hello world")]
	if !ok {
		t.Fatal("missing entry for 'hello world'")
	}
	if r["PERSON"][0] != "Bob" {
		t.Errorf("entry = %v", r)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	p := Build(nil, nil)
	if p.Hits != 0 || p.MissSegments != 0 || len(p.Misses) != 0 || len(p.Results) != 0 {
		t.Errorf("empty input produced non-empty plan: %+v", p)
	}
}
