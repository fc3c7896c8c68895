// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/entity-engine/internal/annotate"
	"github.com/pdiddy/entity-engine/internal/cachestore"
	"github.com/pdiddy/entity-engine/internal/container"
	"github.com/pdiddy/entity-engine/internal/pipeline"
	"github.com/pdiddy/entity-engine/internal/secrets"
	"github.com/pdiddy/entity-engine/pkg/types"
)

const (
	defaultTimeout   = 5 * time.Minute
	defaultCachePath = "cache/entities.cache.zst"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate segment shards and emit per-document entity records",
	Long: `Annotate runs the cached annotation pipeline over every shard in the
batch directory. Segments already in the cache are served from it; only
new texts reach the NER backend. Each shard's new annotations are
committed to the cache before its records file is written, so an
interrupted run never loses completed annotation work and re-running
picks up where it stopped.

The http backend talks to a NER service over HTTP; the container backend
runs a local NER image through docker or podman.`,
	RunE: runAnnotate,
}

func init() {
	annotateCmd.Flags().String("backend", "http", "annotation backend: http or container")
	annotateCmd.Flags().String("base-url", "", "NER service endpoint for the http backend")
	annotateCmd.Flags().String("api-key", "", "NER service API key (default: .secrets/annotator-api-key)")
	annotateCmd.Flags().String("image", "", "container image for the container backend (default ner-service:latest)")
	annotateCmd.Flags().String("model", "", "NER model name (e.g. en_core_web_lg)")
	annotateCmd.Flags().Int("batch-size", 0, "texts per annotation request (default 128)")
	annotateCmd.Flags().Int("parallelism", 0, "concurrent annotation requests (default 4)")
	annotateCmd.Flags().Int("max-retries", 0, "retries for rate-limited or overloaded responses (default 5)")
	annotateCmd.Flags().Float64("rps", 0, "outbound request rate cap (0 = unlimited)")
	annotateCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 5m)")
	annotateCmd.Flags().String("cache", defaultCachePath, "cache artifact path")
	annotateCmd.Flags().Int("compression-level", 0, "zstd level for the cache artifact (0 = codec default)")
	annotateCmd.Flags().String("batch-dir", "batches", "directory of shard files to annotate")
	annotateCmd.Flags().String("records-dir", "records", "output directory for document records")

	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cfg := annotatorConfigFromFlags(cmd)

	ann, err := buildAnnotator(cfg)
	if err != nil {
		return err
	}

	cachePath, _ := cmd.Flags().GetString("cache")
	level, _ := cmd.Flags().GetInt("compression-level")
	store := cachestore.New(cachePath, level)

	batchDir, _ := cmd.Flags().GetString("batch-dir")
	recordsDir, _ := cmd.Flags().GetString("records-dir")

	summary, err := pipeline.ProcessDir(context.Background(), ann, store, batchDir, recordsDir, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d shard(s) failed annotation", summary.Failed)
	}
	return nil
}

func annotatorConfigFromFlags(cmd *cobra.Command) types.AnnotatorConfig {
	backend, _ := cmd.Flags().GetString("backend")
	baseURL, _ := cmd.Flags().GetString("base-url")
	apiKey, _ := cmd.Flags().GetString("api-key")
	image, _ := cmd.Flags().GetString("image")
	model, _ := cmd.Flags().GetString("model")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	rps, _ := cmd.Flags().GetFloat64("rps")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return types.AnnotatorConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: "entity-engine/0.1",
		},
		Backend:           types.AnnotatorBackend(backend),
		BaseURL:           baseURL,
		APIKey:            secretDefault(secrets.AnnotatorAPIKey, apiKey),
		Image:             image,
		Model:             model,
		BatchSize:         batchSize,
		Parallelism:       parallelism,
		MaxRetries:        maxRetries,
		RequestsPerSecond: rps,
	}
}

func buildAnnotator(cfg types.AnnotatorConfig) (annotate.Annotator, error) {
	switch cfg.Backend {
	case types.BackendHTTP, "":
		return annotate.NewHTTP(cfg)
	case types.BackendContainer:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return annotate.NewContainer(rt, cfg.Image, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported backend %q: use http or container", cfg.Backend)
	}
}
