// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdiddy/entity-engine/internal/container"
	"github.com/pdiddy/entity-engine/pkg/types"
)

const imageNERService = "ner-service:latest"

// ContainerAnnotator pipes segment batches through a local NER container
// image: NDJSON texts on stdin, NDJSON entity maps on stdout, one line per
// input line. It depends on a container.Runtime (docker or podman)
// injected at construction time.
type ContainerAnnotator struct {
	runtime container.Runtime
	image   string
	model   string
}

// NewContainer creates an annotator that uses the given container runtime.
// An empty image selects ner-service:latest. It verifies that the image
// exists locally before returning.
func NewContainer(rt container.Runtime, image, model string) (*ContainerAnnotator, error) {
	if image == "" {
		image = imageNERService
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("NER image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerAnnotator{runtime: rt, image: image, model: model}, nil
}

// containerLine is one stdin line to the NER container.
type containerLine struct {
	Text string `json:"text"`
}

// containerResult is one stdout line from the NER container.
type containerResult struct {
	Entities types.AnnotationResult `json:"entities"`
}

// AnnotateBatch implements Annotator. The container is one-shot: it reads
// all input, writes all output, and exits; a non-zero exit fails the batch.
func (c *ContainerAnnotator) AnnotateBatch(ctx context.Context, texts []string) ([]types.AnnotationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stdin bytes.Buffer
	enc := json.NewEncoder(&stdin)
	for _, text := range texts {
		if err := enc.Encode(containerLine{Text: text}); err != nil {
			return nil, fmt.Errorf("encoding container input: %w", err)
		}
	}

	var args []string
	if c.model != "" {
		args = []string{"--model", c.model}
	}

	var stdout bytes.Buffer
	if err := c.runtime.Run(c.image, args, &stdin, &stdout); err != nil {
		return nil, fmt.Errorf("annotating with %s: %w", c.image, err)
	}

	results := make([]types.AnnotationResult, 0, len(texts))
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var cr containerResult
		if err := json.Unmarshal(line, &cr); err != nil {
			return nil, fmt.Errorf("decoding container output line %d: %w", len(results)+1, err)
		}
		if cr.Entities == nil {
			cr.Entities = types.AnnotationResult{}
		}
		results = append(results, cr.Entities)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading container output: %w", err)
	}

	if len(results) != len(texts) {
		return nil, fmt.Errorf("container produced %d results for %d texts", len(results), len(texts))
	}
	return results, nil
}
