// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/entity-engine/internal/entityindex"
	"github.com/pdiddy/entity-engine/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the entity index (store, retrieve, export, stats)",
	Long: `Index manages a local SQLite index built from per-document entity
records. Use subcommands to ingest records, query occurrences, or export.`,
}

// --- store subcommand ---

var indexStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Ingest document records into the entity index",
	Long: `Store reads per-shard records files from the records directory and
ingests them into a SQLite database with FTS5 indexing over entity text.
Unchanged shards are skipped on subsequent runs.`,
	RunE: runIndexStore,
}

func runIndexStore(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d shard(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- retrieve subcommand ---

var indexRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Query the entity index with full-text search and filters",
	Long: `Retrieve searches entity occurrences using FTS5 full-text search over
entity text, structured filters (type, accession), or a combination of
both. Results include the source document for each occurrence.`,
	RunE: runIndexRetrieve,
}

func runIndexRetrieve(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --type, or --accession")
	}

	results, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRetrieveOutput(results, jsonOutput)
}

func formatRetrieveOutput(results []entityindex.Occurrence, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-10s  %-40s  %-24s  %s\n",
		"Rank", "Type", "Entity", "Accession", "Path")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, r := range results {
		entity := r.Entity
		if len(entity) > 40 {
			entity = entity[:37] + "..."
		}
		accession := r.Accession
		if len(accession) > 24 {
			accession = accession[:21] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-10s  %-40s  %-24s  %s\n",
			i+1, r.Type, entity, accession, r.Path)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the entity index to YAML or JSON",
	Long: `Export writes the full entity index (or a filtered subset) to
export.yaml or export.json in the index directory. Supports the same
filter flags as retrieve for partial exports.`,
	RunE: runIndexExport,
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	indexDir, _ := cmd.Flags().GetString("index-dir")

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/export.yaml\n", indexDir)
	case "json":
		if err := store.ExportJSON(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/export.json\n", indexDir)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- stats subcommand ---

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show occurrence counts per entity type",
	RunE:  runIndexStats,
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	store, err := openIndex(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	for _, tc := range counts {
		fmt.Fprintf(os.Stdout, "%-10s  %d\n", tc.Type, tc.Count)
	}
	return nil
}

// --- shared helpers ---

func openIndex(cmd *cobra.Command) (*entityindex.Store, error) {
	indexDir, _ := cmd.Flags().GetString("index-dir")
	recordsDir, _ := cmd.Flags().GetString("records-dir")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	cfg := types.EntityIndexConfig{
		IndexDir:   indexDir,
		RecordsDir: recordsDir,
		MaxResults: maxResults,
	}
	return entityindex.NewStore(cfg)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) entityindex.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	entityType, _ := cmd.Flags().GetString("type")
	accession, _ := cmd.Flags().GetString("accession")
	limit, _ := cmd.Flags().GetInt("limit")

	return entityindex.QueryOptions{
		Query:      queryText,
		Type:       entityType,
		Accession:  accession,
		MaxResults: limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	indexCmd.PersistentFlags().String("index-dir", "index", "directory for the SQLite database and exports")
	indexCmd.PersistentFlags().String("records-dir", "records", "directory of document records to ingest")
	indexCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")

	// Retrieve flags.
	indexRetrieveCmd.Flags().String("query", "", "full-text search query over entity text")
	indexRetrieveCmd.Flags().String("type", "", "filter by entity type: PERSON, ORG, GPE, ...")
	indexRetrieveCmd.Flags().String("accession", "", "filter by document accession")
	indexRetrieveCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	indexRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	indexExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	indexExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	indexExportCmd.Flags().String("type", "", "filter by entity type for partial export")
	indexExportCmd.Flags().String("accession", "", "filter by accession for partial export")
	indexExportCmd.Flags().Int("limit", 0, "maximum occurrences to export (0 = all)")

	// Stats flags.
	indexStatsCmd.Flags().Bool("json", false, "output counts as JSON")

	// Wire subcommands.
	indexCmd.AddCommand(indexStoreCmd)
	indexCmd.AddCommand(indexRetrieveCmd)
	indexCmd.AddCommand(indexExportCmd)
	indexCmd.AddCommand(indexStatsCmd)

	rootCmd.AddCommand(indexCmd)
}
