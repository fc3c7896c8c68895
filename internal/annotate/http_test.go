package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pdiddy/entity-engine/pkg/types"
)

func testAnnotatorConfig(url string) types.AnnotatorConfig {
	return types.AnnotatorConfig{
		Backend:     types.BackendHTTP,
		BaseURL:     url,
		Model:       "en_core_web_lg",
		BatchSize:   2,
		Parallelism: 2,
		MaxRetries:  1,
	}
}

// nerHandler decodes the request and returns one result per text, tagging
// each text that contains "person" with a PERSON entity.
func nerHandler(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		var req annotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := annotateResponse{Results: make([]types.AnnotationResult, len(req.Texts))}
		for i, text := range req.Texts {
			result := types.AnnotationResult{}
			if strings.Contains(text, "person") {
				result["PERSON"] = []string{"Bob"}
			}
			resp.Results[i] = result
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestHTTPAnnotateBatch(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(nerHandler(&calls))
	defer ts.Close()

	h, err := NewHTTP(testAnnotatorConfig(ts.URL))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	texts := []string{"a person here", "nothing", "another person", "still nothing", "last"}
	results, err := h.AnnotateBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("AnnotateBatch: %v", err)
	}

	if len(results) != len(texts) {
		t.Fatalf("got %d results for %d texts", len(results), len(texts))
	}
	// Order preserved across chunk boundaries (batch size 2 -> 3 chunks).
	for i, text := range texts {
		_, hasPerson := results[i]["PERSON"]
		if hasPerson != strings.Contains(text, "person") {
			t.Errorf("results[%d] = %v for text %q", i, results[i], text)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server received %d requests, want 3 chunks", got)
	}
}

func TestHTTPAnnotateBatchChunkFailureFailsWhole(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			http.Error(w, "worker crashed", http.StatusInternalServerError)
			return
		}
		nerHandler(new(int32))(w, r)
	}))
	defer ts.Close()

	cfg := testAnnotatorConfig(ts.URL)
	cfg.Parallelism = 1 // deterministic chunk ordering
	h, err := NewHTTP(cfg)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	_, err = h.AnnotateBatch(context.Background(), []string{"a", "b", "c", "d"})
	if err == nil {
		t.Fatal("AnnotateBatch succeeded despite failed chunk")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestHTTPAnnotateBatchLengthMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(annotateResponse{Results: []types.AnnotationResult{{}}})
	}))
	defer ts.Close()

	h, err := NewHTTP(testAnnotatorConfig(ts.URL))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	_, err = h.AnnotateBatch(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Error("AnnotateBatch accepted short response")
	}
}

func TestHTTPSendsModelAndAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ner_key" {
			http.Error(w, fmt.Sprintf("bad auth %q", got), http.StatusUnauthorized)
			return
		}
		var req annotateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "en_core_web_lg" {
			http.Error(w, "missing model", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(annotateResponse{
			Results: make([]types.AnnotationResult, len(req.Texts)),
		})
	}))
	defer ts.Close()

	cfg := testAnnotatorConfig(ts.URL)
	cfg.APIKey = "ner_key"
	h, err := NewHTTP(cfg)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	if _, err := h.AnnotateBatch(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("AnnotateBatch: %v", err)
	}
}

func TestNewHTTPRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTP(types.AnnotatorConfig{}); err == nil {
		t.Error("NewHTTP accepted empty base URL")
	}
}
