// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/entity-engine/internal/httputil"
	"github.com/pdiddy/entity-engine/pkg/types"
)

const (
	defaultBatchSize   = 128
	defaultParallelism = 4
	defaultHTTPTimeout = 5 * time.Minute
)

// HTTPAnnotator calls a NER service over HTTP. The full batch is split
// into chunks of the configured batch size; chunks run concurrently up to
// the configured parallelism, optionally rate limited. Any chunk error
// fails the whole batch.
type HTTPAnnotator struct {
	client    *http.Client
	cfg       types.AnnotatorConfig
	limiter   *rate.Limiter
	batchSize int
	workers   int
}

// NewHTTP creates an HTTP annotator from cfg, applying defaults for unset
// tuning knobs.
func NewHTTP(cfg types.AnnotatorConfig) (*HTTPAnnotator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("annotator base URL not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = defaultParallelism
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPAnnotator{
		client:    &http.Client{Timeout: timeout},
		cfg:       cfg,
		limiter:   limiter,
		batchSize: batchSize,
		workers:   workers,
	}, nil
}

// annotateRequest is the NER service request body.
type annotateRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts"`
}

// annotateResponse is the NER service response body: one entity map per
// input text, same order.
type annotateResponse struct {
	Results []types.AnnotationResult `json:"results"`
}

// AnnotateBatch implements Annotator.
func (h *HTTPAnnotator) AnnotateBatch(ctx context.Context, texts []string) ([]types.AnnotationResult, error) {
	results := make([]types.AnnotationResult, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for start := 0; start < len(texts); start += h.batchSize {
		end := min(start+h.batchSize, len(texts))
		chunk := texts[start:end]
		offset := start

		g.Go(func() error {
			if h.limiter != nil {
				if err := h.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			chunkResults, err := h.annotateChunk(ctx, chunk)
			if err != nil {
				return err
			}
			copy(results[offset:], chunkResults)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *HTTPAnnotator) annotateChunk(ctx context.Context, chunk []string) ([]types.AnnotationResult, error) {
	body, err := json.Marshal(annotateRequest{Model: h.cfg.Model, Texts: chunk})
	if err != nil {
		return nil, fmt.Errorf("encoding annotate request: %w", err)
	}

	url := strings.TrimRight(h.cfg.BaseURL, "/") + "/v1/annotate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", h.cfg.UserAgent)
	}
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, h.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("calling NER service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("NER service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var ar annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decoding annotate response: %w", err)
	}
	if len(ar.Results) != len(chunk) {
		return nil, fmt.Errorf("NER service returned %d results for %d texts", len(ar.Results), len(chunk))
	}
	return ar.Results, nil
}
