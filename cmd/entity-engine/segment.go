// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/entity-engine/internal/segment"
	"github.com/pdiddy/entity-engine/pkg/types"
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Flatten parsed filings into shard files of text segments",
	Long: `Segment reads parsed filing JSON files, walks each document tree in
deterministic order, and lifts text fields and flattened table columns
into NDJSON shard files under the batch directory. Filings that fail to
parse are counted and skipped.`,
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().String("input-dir", "filings", "directory of parsed filing JSON files")
	segmentCmd.Flags().String("batch-dir", "batches", "output directory for shard files")
	segmentCmd.Flags().Int("batch-size", 0, "filings per shard file (default 1000)")

	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	inputDir, _ := cmd.Flags().GetString("input-dir")
	batchDir, _ := cmd.Flags().GetString("batch-dir")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	cfg := types.SegmenterConfig{
		InputDir:  inputDir,
		BatchDir:  batchDir,
		BatchSize: batchSize,
	}

	summary, err := segment.WriteShards(cfg, os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d filing(s) failed to parse", summary.Failed)
	}
	return nil
}
